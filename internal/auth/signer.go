package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/jonboulle/clockwork"
)

// Signer attaches authentication material to an outbound request. body is
// the exact request body that will be sent.
type Signer interface {
	Sign(req *http.Request, body []byte) error
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(req *http.Request, body []byte) error

func (f SignerFunc) Sign(req *http.Request, body []byte) error {
	return f(req, body)
}

// Nop leaves requests untouched. It is used when no credentials are set.
type Nop struct{}

func (Nop) Sign(*http.Request, []byte) error { return nil }

var _ Signer = Nop{}

// HeaderSigner sets a fixed header on every request: an API key, a bearer
// token or basic credentials.
type HeaderSigner struct {
	Name  string
	Value string
}

func (s HeaderSigner) Sign(req *http.Request, _ []byte) error {
	req.Header.Set(s.Name, s.Value)
	return nil
}

type headerSettings struct {
	Header      string `json:"header"`
	Key         string `json:"key"`
	KeyEnv      string `json:"keyEnv"`
	Token       string `json:"token"`
	TokenEnv    string `json:"tokenEnv"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	PasswordEnv string `json:"passwordEnv"`
}

func fromEnv(literal, env string) string {
	if literal != "" || env == "" {
		return literal
	}
	return os.Getenv(env)
}

// NewSigner builds the Signer described by an auth options map. Exactly one
// scheme may be configured: hawk, apikey, bearer or basic. A nil or empty
// map yields Nop.
func NewSigner(settings map[string]any, clk clockwork.Clock) (Signer, error) {
	var schemes []string
	for name := range settings {
		switch name {
		case "hawk", "apikey", "bearer", "basic":
			schemes = append(schemes, name)
		}
	}
	sort.Strings(schemes)

	switch len(schemes) {
	case 0:
		return Nop{}, nil
	case 1:
	default:
		return nil, fmt.Errorf("auth: only one scheme may be configured, got %s", strings.Join(schemes, ", "))
	}

	scheme := schemes[0]
	if scheme == "hawk" {
		var hawk HawkSettings
		if err := decode(settings[scheme], &hawk); err != nil {
			return nil, fmt.Errorf("auth: hawk: %w", err)
		}
		return NewHawkSigner(hawk, clk)
	}

	var hs headerSettings
	if err := decode(settings[scheme], &hs); err != nil {
		return nil, fmt.Errorf("auth: %s: %w", scheme, err)
	}

	switch scheme {
	case "apikey":
		key := fromEnv(hs.Key, hs.KeyEnv)
		if key == "" {
			return nil, fmt.Errorf("auth: apikey: key or keyEnv is required")
		}
		header := hs.Header
		if header == "" {
			header = "X-API-Key"
		}
		return HeaderSigner{Name: header, Value: key}, nil

	case "bearer":
		token := fromEnv(hs.Token, hs.TokenEnv)
		if token == "" {
			return nil, fmt.Errorf("auth: bearer: token or tokenEnv is required")
		}
		return HeaderSigner{Name: "Authorization", Value: "Bearer " + token}, nil

	default:
		if hs.Username == "" {
			return nil, fmt.Errorf("auth: basic: username is required")
		}
		req := &http.Request{Header: http.Header{}}
		req.SetBasicAuth(hs.Username, fromEnv(hs.Password, hs.PasswordEnv))
		return HeaderSigner{Name: "Authorization", Value: req.Header.Get("Authorization")}, nil
	}
}

// decode maps an untyped options value (as produced by YAML or JSON
// decoding) onto a typed settings struct.
func decode(in any, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
