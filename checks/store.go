package checks

import (
	"context"
	"fmt"

	"go.permalaunch.dev/core/stores"
)

// StoreCheck verifies that the content store can be constructed from its URL.
// Construction validates the URL and the store's credentials. No content is
// uploaded.
type StoreCheck struct {
	URL  string
	Open func(rawURL string) (stores.Store, error)
}

func (StoreCheck) Name() string   { return "store" }
func (StoreCheck) Critical() bool { return false }

func (c StoreCheck) Run(context.Context) Result {
	var res Result

	var store, err = c.Open(c.URL)
	if err != nil {
		return res.fail(fmt.Sprintf("opening content store: %s", err))
	}
	res.Details = append(res.Details, "provider: "+store.Provider())

	return res.pass("content store configured")
}
