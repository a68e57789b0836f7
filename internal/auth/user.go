package auth

import (
	"encoding/json"
	"fmt"
	"os"
)

// RoleUser and RoleGuest are the built-in roles. Guests receive
// shorter-lived tokens.
const (
	RoleUser  = "user"
	RoleGuest = "guest"
)

// User is one credential record from the users file or the inline accounts
// list. Usernames are unique within the merged table; an API key, if present,
// indexes back to exactly one user.
type User struct {
	Username  string         `json:"username"`
	Password  string         `json:"password,omitempty"`
	APIKey    string         `json:"api_key,omitempty"`
	Role      string         `json:"role,omitempty"`
	Workspace string         `json:"workspace,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// usersFile is the on-disk shape of the structured credential file.
type usersFile struct {
	Users []User `json:"users"`
}

// loadUsersFile reads and parses the JSON users file at path.
// A missing file is not an error; it returns an empty slice.
func loadUsersFile(path string) ([]User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading users file %s: %w", path, err)
	}

	var f usersFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing users file %s: %w", path, err)
	}

	return f.Users, nil
}
