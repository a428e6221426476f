package dberr

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	tests := []struct {
		status int
		sub    SubStatus
		kind   Kind
	}{
		{StatusGone, SubStatusUnknown, KindTopology},
		{StatusGone, SubStatusCompletingSplit, KindTopology},
		{StatusForbidden, SubStatusWriteForbidden, KindTopology},
		{StatusForbidden, SubStatusUnknown, KindClient},
		{StatusNotFound, SubStatusReadSessionNotAvailable, KindConsistency},
		{StatusNotFound, SubStatusUnknown, KindClient},
		{StatusTooManyRequests, SubStatusUnknown, KindTransient},
		{StatusServiceUnavailable, SubStatusUnknown, KindTransient},
		{StatusInternalServerError, SubStatusUnknown, KindInternal},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.status, tt.sub), func(t *testing.T) {
			err := New(tt.status, tt.sub, "x")
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, tt.status, StatusCode(err))
			assert.Equal(t, tt.sub, SubStatusOf(err))
		})
	}
}

func TestFromResponse(t *testing.T) {
	err := FromResponse(StatusTooManyRequests, map[string]string{
		HeaderSubStatus:     "0",
		HeaderRetryAfterMs:  "250",
		HeaderRequestCharge: "1.5",
	}, "")

	assert.True(t, IsThrottled(err))
	assert.Equal(t, 250*time.Millisecond, RetryAfter(err))
	assert.Equal(t, 1.5, RequestCharge(err))
	assert.Equal(t, "250", Headers(err)[HeaderRetryAfterMs])
}

func TestServiceUnavailableKeepsCause(t *testing.T) {
	gone := WithRequestCharge(Gone("replica moved"), 3)
	err := ServiceUnavailable("retries exhausted", gone)

	assert.Equal(t, StatusServiceUnavailable, StatusCode(err))
	assert.Same(t, gone, Cause(err))
	assert.Equal(t, 3.0, RequestCharge(err))
	assert.True(t, IsGone(Cause(err)))
}

func TestClientSentinel(t *testing.T) {
	err := Client(ErrMalformedPath, "%s", "/a/\"b")
	assert.True(t, Is(err, ErrMalformedPath))
	assert.False(t, Is(err, ErrInvalidArgument))
	assert.Equal(t, KindClient, KindOf(err))
	assert.Contains(t, err.Error(), `/a/"b`)
}

func TestIsGoneIgnoresSpecificSubStatus(t *testing.T) {
	assert.True(t, IsGone(Gone("x")))
	assert.False(t, IsGone(New(StatusGone, SubStatusPartitionKeyRangeGone, "x")))
	assert.False(t, IsGone(New(StatusNotFound, 0, "x")))
}

func TestForeignErrors(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(fmt.Errorf("plain")))
	assert.Equal(t, KindTransient, KindOf(context.DeadlineExceeded))
	assert.Equal(t, 0, StatusCode(fmt.Errorf("plain")))
}

func TestWrapStatus(t *testing.T) {
	sentinel := errors.New("routing map is stale")
	err := WrapStatus(sentinel, StatusGone, SubStatusPartitionKeyRangeGone, "range %s", "3")

	assert.True(t, Is(err, sentinel))
	assert.True(t, Has(err, StatusGone, SubStatusPartitionKeyRangeGone))
	assert.False(t, IsGone(err))
	assert.Equal(t, KindTopology, KindOf(err))
}
