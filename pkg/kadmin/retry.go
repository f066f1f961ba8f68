package kadmin

import "errors"

// outcome is what the Worker should do with a Call after fail has
// classified an error against it.
type outcome uint8

const (
	// outcomeRequeue puts the Call back in the pending set to be
	// reassigned a node on the next pass, without completing its Future.
	outcomeRequeue outcome = iota
	// outcomeTerminal completes the Call's Future with a terminal error
	// via OnFailure and removes it from every Worker-owned structure.
	outcomeTerminal
)

// retryPolicy bundles the knobs fail needs beyond the Call and error
// themselves. It is threaded in rather than read off a *worker so this
// file can be tested without constructing one.
type retryPolicy struct {
	maxRetries int
	backoffMs  func(tries int) int64
	nowMs      int64
}

// fail implements spec.md §4.3's retry/backoff/deadline decision for one
// failed attempt of call, mirroring KafkaAdminClient.java's Call.fail in
// order:
//
//  1. an aborted Call (its deadline passed while in flight, so the
//     Worker disconnected its node) is always terminal with a
//     TimeoutError;
//  2. an UnsupportedVersionError that OnUnsupportedVersion accepts is
//     requeued without spending a try, as long as the downgrade budget
//     for its request key is not exhausted;
//  3. otherwise a try is spent and nextAllowedTryMs is pushed out by the
//     configured backoff;
//  4. a Call whose deadline has already passed is terminal;
//  5. a non-retriable error (per the §7 taxonomy) is terminal;
//  6. a Call that has exhausted maxRetries is terminal;
//  7. anything left over is requeued.
//
// fail returns the outcome and, for outcomeTerminal, the error OnFailure
// should be given (which is not always err verbatim — aborted and
// deadline-exceeded Calls are reported as TimeoutError regardless of the
// underlying err).
func fail(call *Call, err error, pol retryPolicy) (outcome, error) {
	if call.aborted {
		return outcomeTerminal, &TimeoutError{CallName: call.Name, Reason: "aborted"}
	}

	var uve *UnsupportedVersionError
	if errors.As(err, &uve) && call.OnUnsupportedVersion != nil {
		budget := downgradeBudget(uve.Key, uve.Version)
		if call.downgradesUsed < budget && call.OnUnsupportedVersion(uve) {
			call.downgradesUsed++
			return outcomeRequeue, nil
		}
		// Downgrade ladder exhausted, or the Call declined to downgrade
		// further: fall through to ordinary retry accounting with this
		// error, same as any other non-retriable failure below.
		err = ErrDowngradeLadderExhausted
	}

	call.tries++
	call.nextAllowedTryMs = pol.nowMs + pol.backoffMs(call.tries)

	if pol.nowMs > call.DeadlineMs {
		return outcomeTerminal, &TimeoutError{CallName: call.Name, Reason: "deadline exceeded"}
	}

	if !retriable(err) {
		return outcomeTerminal, err
	}

	if call.tries > pol.maxRetries {
		return outcomeTerminal, err
	}

	return outcomeRequeue, nil
}
