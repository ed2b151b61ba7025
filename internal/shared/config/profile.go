package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile describes how a particular portal installation looks on the wire:
// the browser it expects, its form field names and the markers used to read
// state back from its pages.
type Profile struct {
	Headers   HeaderProfile     `yaml:"headers"`
	Timeslots []TimeslotProfile `yaml:"timeslots"`
	Login     LoginProfile      `yaml:"login"`
	Auth      AuthProfile       `yaml:"auth"`
	Booking   BookingProfile    `yaml:"booking"`
}

// HeaderProfile is the fixed browser header set sent with every request
type HeaderProfile struct {
	Accept         string `yaml:"accept"`
	AcceptLanguage string `yaml:"accept_language"`
	UserAgent      string `yaml:"user_agent"`
}

// TimeslotProfile is one day partition as it appears on the day view
type TimeslotProfile struct {
	Name    string `yaml:"name"`
	Label   string `yaml:"label"`
	Seconds int    `yaml:"seconds"`
}

// LoginProfile holds the login form layout
type LoginProfile struct {
	Path                 string `yaml:"path"`
	UserField            string `yaml:"user_field"`
	PasswordField        string `yaml:"password_field"`
	EulaField            string `yaml:"eula_field"`
	EulaValue            string `yaml:"eula_value"`
	CaptchaField         string `yaml:"captcha_field"`
	CaptchaImageSelector string `yaml:"captcha_image_selector"`
}

// AuthProfile tells how to recognise a logged-in page and the account id on it
type AuthProfile struct {
	CheckPath         string `yaml:"check_path"`
	Marker            string `yaml:"marker"`
	AccountIDSelector string `yaml:"account_id_selector"`
	AccountIDPattern  string `yaml:"account_id_pattern"`
}

// BookingProfile holds booking form constants
type BookingProfile struct {
	Type          string `yaml:"type"`
	ErrorSelector string `yaml:"error_selector"`
}

// DefaultProfile matches the stock MRBS installation the client was written against
func DefaultProfile() Profile {
	return Profile{
		Headers: HeaderProfile{
			Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			AcceptLanguage: "de-DE,de;q=0.9,en-US;q=0.7,en;q=0.5",
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
		},
		Timeslots: []TimeslotProfile{
			{Name: "Vormittags", Label: "vormittags", Seconds: 43200},
			{Name: "Nachmittags", Label: "nachmittags", Seconds: 43260},
			{Name: "Abends", Label: "abends", Seconds: 43320},
		},
		Login: LoginProfile{
			Path:                 "admin.php",
			UserField:            "NewUserName",
			PasswordField:        "NewUserPassword",
			EulaField:            "eula",
			EulaValue:            "1",
			CaptchaField:         "captcha_code",
			CaptchaImageSelector: "img[src*='captcha']",
		},
		Auth: AuthProfile{
			CheckPath:         "admin.php",
			Marker:            "Abmelden",
			AccountIDSelector: "#logon_box",
			AccountIDPattern:  `(\d{6,})`,
		},
		Booking: BookingProfile{
			Type:          "K",
			ErrorSelector: "#contents .error, div.error, p.error",
		},
	}
}

// LoadProfile reads a YAML profile from path on top of the defaults.
// An empty path yields the defaults unchanged.
func LoadProfile(path string) (Profile, error) {
	profile := DefaultProfile()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read portal profile: %w", err)
	}

	var override Profile
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Profile{}, fmt.Errorf("failed to parse portal profile: %w", err)
	}

	profile.merge(override)
	return profile, nil
}

// merge copies every non-empty field of o onto p
func (p *Profile) merge(o Profile) {
	setIf(&p.Headers.Accept, o.Headers.Accept)
	setIf(&p.Headers.AcceptLanguage, o.Headers.AcceptLanguage)
	setIf(&p.Headers.UserAgent, o.Headers.UserAgent)

	// An explicit empty list in the file means "discover from the page".
	if o.Timeslots != nil {
		p.Timeslots = o.Timeslots
	}

	setIf(&p.Login.Path, o.Login.Path)
	setIf(&p.Login.UserField, o.Login.UserField)
	setIf(&p.Login.PasswordField, o.Login.PasswordField)
	setIf(&p.Login.EulaField, o.Login.EulaField)
	setIf(&p.Login.EulaValue, o.Login.EulaValue)
	setIf(&p.Login.CaptchaField, o.Login.CaptchaField)
	setIf(&p.Login.CaptchaImageSelector, o.Login.CaptchaImageSelector)

	setIf(&p.Auth.CheckPath, o.Auth.CheckPath)
	setIf(&p.Auth.Marker, o.Auth.Marker)
	setIf(&p.Auth.AccountIDSelector, o.Auth.AccountIDSelector)
	setIf(&p.Auth.AccountIDPattern, o.Auth.AccountIDPattern)

	setIf(&p.Booking.Type, o.Booking.Type)
	setIf(&p.Booking.ErrorSelector, o.Booking.ErrorSelector)
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
