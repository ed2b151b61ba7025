package portal

import (
	"encoding/json"
	"net/http"
)

// Cookie is a single name/value pair of a portal session
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Cookies is the cookie bag of one logical portal session. Callers should
// treat it as opaque; it only grows over the life of a session.
type Cookies []Cookie

// Merge returns the union of c and other. Values from other win for names
// present in both; names only present in c are kept.
func (c Cookies) Merge(other Cookies) Cookies {
	out := make(Cookies, 0, len(c)+len(other))
	index := make(map[string]int, len(c)+len(other))
	for _, list := range []Cookies{c, other} {
		for _, ck := range list {
			if ck.Name == "" {
				continue
			}
			if i, ok := index[ck.Name]; ok {
				out[i].Value = ck.Value
				continue
			}
			index[ck.Name] = len(out)
			out = append(out, ck)
		}
	}
	return out
}

// Get returns the value of the named cookie
func (c Cookies) Get(name string) (string, bool) {
	for _, ck := range c {
		if ck.Name == name {
			return ck.Value, true
		}
	}
	return "", false
}

// Empty reports whether there is nothing to replay
func (c Cookies) Empty() bool {
	return len(c) == 0
}

// Marshal serializes the bag for storage
func (c Cookies) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalCookies restores a bag produced by Marshal
func UnmarshalCookies(data []byte) (Cookies, error) {
	var c Cookies
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return c, nil
}

func (c Cookies) httpCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(c))
	for _, ck := range c {
		out = append(out, &http.Cookie{Name: ck.Name, Value: ck.Value, Path: "/"})
	}
	return out
}

func fromHTTP(cookies []*http.Cookie) Cookies {
	out := make(Cookies, 0, len(cookies))
	for _, ck := range cookies {
		// Deletions are ignored: a session never loses a cookie.
		if ck.MaxAge < 0 {
			continue
		}
		out = append(out, Cookie{Name: ck.Name, Value: ck.Value})
	}
	return out
}
