package oidc

import "strings"

// claims is the union of what ID tokens and userinfo responses carry,
// including the mail/firstname/lastname shape of directory-backed IdPs.
type claims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Mail          string `json:"mail"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	FirstName     string `json:"firstname"`
	LastName      string `json:"lastname"`
	Picture       string `json:"picture"`
}

func (c claims) email() string {
	return strings.TrimSpace(firstNonEmpty(c.Email, c.Mail))
}

func (c claims) displayName() string {
	return firstNonEmpty(
		strings.TrimSpace(c.Name),
		joinName(c.GivenName, c.FamilyName),
		joinName(c.FirstName, c.LastName),
	)
}

func (c claims) incomplete() bool {
	return c.email() == "" || c.displayName() == ""
}

// fill copies fields from other that c lacks.
func (c *claims) fill(other claims) {
	if c.email() == "" {
		c.Email, c.Mail = other.Email, other.Mail
		if c.EmailVerified == nil {
			c.EmailVerified = other.EmailVerified
		}
	}
	if c.displayName() == "" {
		c.Name = other.Name
		c.GivenName, c.FamilyName = other.GivenName, other.FamilyName
		c.FirstName, c.LastName = other.FirstName, other.LastName
	}
	if c.Picture == "" {
		c.Picture = other.Picture
	}
	if c.Subject == "" {
		c.Subject = other.Subject
	}
}

func joinName(given, family string) string {
	return strings.TrimSpace(strings.TrimSpace(given) + " " + strings.TrimSpace(family))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
