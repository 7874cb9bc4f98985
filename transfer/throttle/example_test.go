package throttle_test

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/adamwoolhether/xfer/transfer/throttle"
)

func ExampleThrottle_Wrap() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	// One budget shared by two transports.
	t, err := throttle.New(100, 2, func() *slog.Logger { return slog.Default() })
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	clients := []*http.Client{
		{Transport: t.Wrap(http.DefaultTransport)},
		{Transport: t.Wrap(http.DefaultTransport)},
	}

	for _, c := range clients {
		resp, err := c.Get(srv.URL)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		resp.Body.Close()
		fmt.Println(resp.StatusCode)
	}
	// Output:
	// 204
	// 204
}
