package entities

// User is a gateway API account. Only the admin account created at startup
// exists unless more are registered explicitly.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
}
