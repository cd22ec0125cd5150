package port

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// PasswordPolicyValidator enforces password strength requirements.
// userInputs are values (email, username) the password should not resemble.
type PasswordPolicyValidator interface {
	Validate(password string, userInputs ...string) error
}

// CodeGenerator produces one-time numeric codes.
type CodeGenerator interface {
	Generate(length int) (string, error)
}
