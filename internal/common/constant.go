package common

// TokenBytes is the amount of randomness behind every refresh token,
// reset token and access-token id (256 bits).
const TokenBytes = 32

// MinPasswordLength is the minimum accepted password length in bytes.
const MinPasswordLength = 10

// MaxUserNameLength mirrors the users.user_name column width.
const MaxUserNameLength = 255
