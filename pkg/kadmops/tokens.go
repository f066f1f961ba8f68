package kadmops

import (
	"context"
	"time"

	"github.com/twmb/franz-go/pkg/kbin"

	"github.com/kadmin-go/kadmin/pkg/kadmin"
)

const (
	keyCreateDelegationToken   int16 = 38
	keyRenewDelegationToken    int16 = 39
	keyExpireDelegationToken   int16 = 40
	keyDescribeDelegationToken int16 = 41
)

// DelegationToken is the full detail of a created or described
// delegation token, mirroring KafkaAdminClient's DescribeDelegationToken
// result shape.
type DelegationToken struct {
	TokenID      string
	HMAC         []byte
	Owner        string
	Renewers     []string
	IssueMs      int64
	ExpiryMs     int64
	MaxExpiryMs  int64
	Err          error
}

// --- CreateDelegationToken ---

type createDelegationTokenRequest struct {
	version     int16
	renewers    []string
	maxLifetime time.Duration
}

func (r *createDelegationTokenRequest) Key() int16         { return keyCreateDelegationToken }
func (r *createDelegationTokenRequest) MaxVersion() int16  { return 3 }
func (r *createDelegationTokenRequest) SetVersion(v int16) { r.version = v }
func (r *createDelegationTokenRequest) ResponseKind() kadmin.Response {
	return &delegationTokenResponse{}
}
func (r *createDelegationTokenRequest) AppendTo(dst []byte) []byte {
	dst = appendStrings(dst, r.renewers)
	dst = kbin.AppendInt64(dst, r.maxLifetime.Milliseconds())
	return dst
}

type delegationTokenResponse struct {
	token DelegationToken
}

func (r *delegationTokenResponse) resultErrors() []error { return []error{r.token.Err} }

func (r *delegationTokenResponse) Key() int16 { return keyCreateDelegationToken }

func (r *delegationTokenResponse) ReadFrom(data []byte) error {
	rd := kbin.Reader{Src: data}
	errCode := rd.Int16()
	owner := rd.String()
	issueMs := rd.Int64()
	expiryMs := rd.Int64()
	maxExpiryMs := rd.Int64()
	tokenID := rd.String()
	hmac := rd.Span(int(rd.Int32()))
	renewers := readStrings(&rd)
	if err := checkComplete(&rd); err != nil {
		return err
	}
	r.token = DelegationToken{
		TokenID: tokenID, HMAC: hmac, Owner: owner, Renewers: renewers,
		IssueMs: issueMs, ExpiryMs: expiryMs, MaxExpiryMs: maxExpiryMs,
		Err: errForCode(errCode),
	}
	return nil
}

// CreateDelegationToken requests a new token renewable by renewers, good
// for up to maxLifetime.
func (cl *Client) CreateDelegationToken(ctx context.Context, maxLifetime time.Duration, renewers ...string) (DelegationToken, error) {
	ctx, cancel := withDeadline(ctx, defaultCallTimeout)
	defer cancel()

	req := &createDelegationTokenRequest{renewers: renewers, maxLifetime: maxLifetime}
	resp, err := do(ctx, cl, "CreateDelegationToken", kadmin.ToController(), req, nil)
	if err != nil {
		return DelegationToken{}, err
	}
	tok := resp.(*delegationTokenResponse).token
	return tok, tok.Err
}

// --- RenewDelegationToken / ExpireDelegationToken ---

type tokenLifetimeRequest struct {
	key         int16
	version     int16
	hmac        []byte
	timespanMs  int64
}

func (r *tokenLifetimeRequest) Key() int16         { return r.key }
func (r *tokenLifetimeRequest) MaxVersion() int16  { return 2 }
func (r *tokenLifetimeRequest) SetVersion(v int16) { r.version = v }
func (r *tokenLifetimeRequest) ResponseKind() kadmin.Response {
	return &tokenLifetimeResponse{key: r.key}
}
func (r *tokenLifetimeRequest) AppendTo(dst []byte) []byte {
	dst = kbin.AppendBytes(dst, r.hmac)
	dst = kbin.AppendInt64(dst, r.timespanMs)
	return dst
}

type tokenLifetimeResponse struct {
	key      int16
	expiryMs int64
	err      error
}

func (r *tokenLifetimeResponse) resultErrors() []error { return []error{r.err} }

func (r *tokenLifetimeResponse) Key() int16 { return r.key }

func (r *tokenLifetimeResponse) ReadFrom(data []byte) error {
	rd := kbin.Reader{Src: data}
	errCode := rd.Int16()
	expiryMs := rd.Int64()
	if err := checkComplete(&rd); err != nil {
		return err
	}
	r.expiryMs, r.err = expiryMs, errForCode(errCode)
	return nil
}

// RenewDelegationToken extends the token identified by hmac by
// renewTimespan, returning its new expiry time.
func (cl *Client) RenewDelegationToken(ctx context.Context, hmac []byte, renewTimespan time.Duration) (int64, error) {
	return cl.tokenLifetime(ctx, "RenewDelegationToken", keyRenewDelegationToken, hmac, renewTimespan.Milliseconds())
}

// ExpireDelegationToken sets the token identified by hmac to expire
// after expiryTimespan (0 expires it immediately).
func (cl *Client) ExpireDelegationToken(ctx context.Context, hmac []byte, expiryTimespan time.Duration) (int64, error) {
	return cl.tokenLifetime(ctx, "ExpireDelegationToken", keyExpireDelegationToken, hmac, expiryTimespan.Milliseconds())
}

func (cl *Client) tokenLifetime(ctx context.Context, name string, key int16, hmac []byte, spanMs int64) (int64, error) {
	ctx, cancel := withDeadline(ctx, defaultCallTimeout)
	defer cancel()

	req := &tokenLifetimeRequest{key: key, hmac: hmac, timespanMs: spanMs}
	resp, err := do(ctx, cl, name, kadmin.ToController(), req, nil)
	if err != nil {
		return 0, err
	}
	r := resp.(*tokenLifetimeResponse)
	return r.expiryMs, r.err
}

// --- DescribeDelegationTokens ---

type describeDelegationTokensRequest struct {
	version int16
	owners  []string
}

func (r *describeDelegationTokensRequest) Key() int16         { return keyDescribeDelegationToken }
func (r *describeDelegationTokensRequest) MaxVersion() int16  { return 3 }
func (r *describeDelegationTokensRequest) SetVersion(v int16) { r.version = v }
func (r *describeDelegationTokensRequest) ResponseKind() kadmin.Response {
	return &describeDelegationTokensResponse{}
}
func (r *describeDelegationTokensRequest) AppendTo(dst []byte) []byte {
	return appendStrings(dst, r.owners)
}

type describeDelegationTokensResponse struct {
	err    error
	tokens []DelegationToken
}

func (r *describeDelegationTokensResponse) resultErrors() []error { return []error{r.err} }

func (r *describeDelegationTokensResponse) Key() int16 { return keyDescribeDelegationToken }

func (r *describeDelegationTokensResponse) ReadFrom(data []byte) error {
	rd := kbin.Reader{Src: data}
	errCode := rd.Int16()
	n := rd.Int32()
	tokens := make([]DelegationToken, 0, n)
	for i := int32(0); i < n; i++ {
		owner := rd.String()
		issueMs := rd.Int64()
		expiryMs := rd.Int64()
		maxExpiryMs := rd.Int64()
		tokenID := rd.String()
		hmac := rd.Span(int(rd.Int32()))
		renewers := readStrings(&rd)
		tokens = append(tokens, DelegationToken{
			TokenID: tokenID, HMAC: hmac, Owner: owner, Renewers: renewers,
			IssueMs: issueMs, ExpiryMs: expiryMs, MaxExpiryMs: maxExpiryMs,
		})
	}
	if err := checkComplete(&rd); err != nil {
		return err
	}
	r.err, r.tokens = errForCode(errCode), tokens
	return nil
}

// DescribeDelegationTokens describes every token owned by any of owners,
// or every token if owners is empty.
func (cl *Client) DescribeDelegationTokens(ctx context.Context, owners ...string) ([]DelegationToken, error) {
	ctx, cancel := withDeadline(ctx, defaultCallTimeout)
	defer cancel()

	req := &describeDelegationTokensRequest{owners: owners}
	resp, err := do(ctx, cl, "DescribeDelegationTokens", kadmin.ToController(), req, nil)
	if err != nil {
		return nil, err
	}
	r := resp.(*describeDelegationTokensResponse)
	return r.tokens, r.err
}
