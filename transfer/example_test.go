package transfer_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/adamwoolhether/xfer/result"
	"github.com/adamwoolhether/xfer/transfer"
)

func ExampleHandle_Perform() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "hello")
	}))
	defer srv.Close()

	var body bytes.Buffer
	h, err := transfer.New(
		transfer.WithURL(srv.URL),
		transfer.WithWriteBack(transfer.BufferWriteBack(&body)),
	)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer h.Close()

	out, err := h.Perform(context.Background())
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(out, h.ResponseCode(), body.String())
	// Output: ok 200 hello
}

func ExamplePollScheduler() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.URL.Path)
	}))
	defer srv.Close()

	results := make(map[string]result.Outcome)
	done := func(_ transfer.Scheduler, h *transfer.Handle, out result.Outcome, err error) {
		results[h.Private().(string)] = out
	}

	s, err := transfer.NewPollScheduler(done, transfer.WithMaxTotalTransfers(2))
	if err != nil {
		fmt.Println(err)
		return
	}
	defer s.Close()

	for _, name := range []string{"a", "b", "c"} {
		h, err := transfer.New(transfer.WithURL(srv.URL+"/"+name), transfer.WithPrivate(name))
		if err != nil {
			fmt.Println(err)
			return
		}
		if _, err := s.Add(h); err != nil {
			fmt.Println(err)
			return
		}
	}

	for {
		running, err := s.Perform()
		if err != nil {
			fmt.Println(err)
			return
		}
		if running == 0 {
			break
		}
		if _, err := s.Wait(nil, time.Second); err != nil {
			fmt.Println(err)
			return
		}
	}

	fmt.Println(results["a"], results["b"], results["c"])
	// Output: ok ok ok
}

func ExampleShare() {
	s, err := transfer.NewShare()
	if err != nil {
		fmt.Println(err)
		return
	}

	for _, cat := range []transfer.Category{transfer.ShareCookie, transfer.ShareDNS, transfer.Category(99)} {
		ok, err := s.Enable(cat)
		fmt.Println(cat, ok, err)
	}
	// Output:
	// cookie true <nil>
	// dns true <nil>
	// category(?) false <nil>
}
