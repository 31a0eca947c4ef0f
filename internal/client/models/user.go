// Package models holds the wire and state types shared by the API client,
// the stores and the CLI.
package models

type UserStats struct {
	TotalDocuments int `json:"totalDocuments"`
	TotalChats     int `json:"totalChats"`
	TotalQueries   int `json:"totalQueries"`
}

type User struct {
	ID        string     `json:"id"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	Role      string     `json:"role,omitempty"`
	Language  string     `json:"language,omitempty"`
	Stats     *UserStats `json:"stats,omitempty"`
}

// DisplayName is "First Last", or the e-mail when both names are empty.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Email
	}
}

// Initials feed the avatar badge in the prompt.
func (u *User) Initials() string {
	if u == nil {
		return ""
	}
	var s string
	if r := []rune(u.FirstName); len(r) > 0 {
		s += string(r[0])
	}
	if r := []rune(u.LastName); len(r) > 0 {
		s += string(r[0])
	}
	return s
}

// UserPatch carries a partial update applied locally by UpdateUser.
type UserPatch struct {
	FirstName *string
	LastName  *string
	Email     *string
	Language  *string
}

func (u *User) Apply(p UserPatch) {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Language != nil {
		u.Language = *p.Language
	}
}

type Tokens struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"-"`
	Language        string `json:"language"`
}

// AuthResult is the payload of login and register.
type AuthResult struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user"`
}
