// Package kadmops is the public per-API façade the admin core lacks by
// design: one file per administrative concern, each building a
// self-contained kadmin.Request/kadmin.Response pair and a blocking
// method that Submits a Call and waits on its Future. This recovers the
// breadth of KafkaAdminClient.java's public surface — CreateTopics,
// DescribeConfigs, DescribeAcls, and so on — on top of the core's
// generic dispatch machinery, the same way pkg/kadm wraps a *kgo.Client.
package kadmops

import (
	"context"
	"time"

	"github.com/kadmin-go/kadmin/pkg/kadmin"
)

// Client is a thin namespace around a *kadmin.Client, mirroring
// pkg/kadm.Client's role as "a simple small wrapper that exists solely
// to namespace methods."
type Client struct {
	core *kadmin.Client
}

// NewClient wraps an already-running admin core.
func NewClient(core *kadmin.Client) *Client {
	return &Client{core: core}
}

// StringPtr is a shortcut for building nullable config values, mirroring
// pkg/kadm.StringPtr.
func StringPtr(s string) *string { return &s }

// do builds a Call around req, submits it, and blocks for the result.
// Every façade method funnels through this so timeout handling, context
// cancellation, and the Call's node selector stay in one place.
func do(ctx context.Context, cl *Client, name string, sel kadmin.NodeSelector, req kadmin.Request, onUnsupported func(*kadmin.UnsupportedVersionError) bool) (kadmin.Response, error) {
	var deadlineMs int64
	if d, ok := ctx.Deadline(); ok {
		deadlineMs = d.UnixMilli()
	} else {
		deadlineMs = time.Now().Add(defaultCallTimeout).UnixMilli()
	}
	call := kadmin.NewCall(name, false, deadlineMs, sel)
	call.CreateRequest = func(timeoutMs int32) (kadmin.Request, error) {
		return req, nil
	}
	call.OnResponse = func(resp kadmin.Response) error {
		re, ok := resp.(resultErrors)
		if !ok {
			return nil
		}
		if err := controllerMovedErr(re.resultErrors()); err != nil {
			cl.core.MetadataManager().ClearController()
			return err
		}
		return nil
	}
	call.OnUnsupportedVersion = onUnsupported

	if err := cl.core.Submit(call); err != nil {
		return nil, err
	}

	select {
	case <-call.Future().Done():
		return call.Future().Wait()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// withDeadline is a convenience for tests and callers that want a
// context-bound timeout without threading time.Duration through every
// method signature.
func withDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

const defaultCallTimeout = 30 * time.Second
