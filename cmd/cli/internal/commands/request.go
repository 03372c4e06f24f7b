package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/wolfeidau/billstock/internal/client"
)

// RequestCmd sends an authenticated request through the session client, so
// 401s go through recovery like any other call.
type RequestCmd struct {
	Method string   `arg:"" help:"HTTP method" enum:"GET,POST,PUT,PATCH,DELETE,get,post,put,patch,delete"`
	Path   string   `arg:"" help:"Path relative to the server URL, e.g. /products"`
	Data   string   `short:"d" help:"JSON request body"`
	Query  []string `short:"q" help:"Query parameter as key=value, repeatable"`
}

func (r *RequestCmd) Run(ctx context.Context, globals *Globals) error {
	req := &client.Request{
		Method: strings.ToUpper(r.Method),
		Path:   r.Path,
	}

	if r.Data != "" {
		if !json.Valid([]byte(r.Data)) {
			return errors.New("request body must be valid JSON")
		}
		req.Body = json.RawMessage(r.Data)
	}

	if len(r.Query) > 0 {
		req.Query = url.Values{}
		for _, kv := range r.Query {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return fmt.Errorf("invalid query parameter %q, want key=value", kv)
			}
			req.Query.Add(k, v)
		}
	}

	rt, err := globals.NewRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	resp, err := rt.Client.Do(ctx, req)
	if err != nil {
		return err
	}

	body := resp.Body
	var pretty bytes.Buffer
	if json.Indent(&pretty, body, "", "  ") == nil {
		body = pretty.Bytes()
	}

	out := globals.out()
	if len(body) > 0 {
		fmt.Fprintln(out, string(body))
	}

	return nil
}
