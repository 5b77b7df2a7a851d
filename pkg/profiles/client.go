package profiles

import (
	"fmt"
	"sort"

	"github.com/samvad-hq/samvad-apicaller/pkg/apiclient"
)

// NewClient builds an API client for the profile, with its headers and options applied.
func (p Profile) NewClient(opts ...apiclient.Option) (*apiclient.Client, error) {
	all := append([]apiclient.Option{apiclient.WithJSONMode(p.JSON())}, opts...)
	c := apiclient.New(p.ResolveAPIKey(), p.BaseURL, all...)

	for _, h := range p.Headers {
		c.Header(h.Name, h.Value)
	}

	keys := make([]string, 0, len(p.Options))
	for k := range p.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := c.Opt(k, p.Options[k]); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("profile %q option %q: %w", p.ID, k, err)
		}
	}
	return c, nil
}
