package broker

import (
	"encoding/json"
	"os"

	"github.com/go-rod/rod/lib/proto"
)

// storageState mirrors the subset of a Playwright-style storage-state file
// the broker cares about: its cookie jar. localStorage entries are not
// replayed since the CDP relay and direct sessions don't share an origin at
// injection time.
type storageState struct {
	Cookies []storageCookie `json:"cookies"`
}

type storageCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

func loadStorageState(path string) (storageState, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return storageState{}, err
	}
	var s storageState
	if err := json.Unmarshal(raw, &s); err != nil {
		return storageState{}, err
	}
	return s, nil
}

func toNetworkCookies(cookies []storageCookie) []*proto.NetworkCookieParam {
	out := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  proto.TimeSinceEpoch(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: proto.NetworkCookieSameSite(c.SameSite),
		})
	}
	return out
}

// SaveStorageState writes h's current browser cookies to path in the same
// Playwright-style shape loadStorageState reads back.
func SaveStorageState(h *Handle, path string) error {
	cookies, err := h.browser.GetCookies()
	if err != nil {
		return err
	}
	out := storageState{Cookies: make([]storageCookie, 0, len(cookies))}
	for _, c := range cookies {
		out.Cookies = append(out.Cookies, storageCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}
