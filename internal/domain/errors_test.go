package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "item_not_found", err: fmt.Errorf("service: %w", ErrItemNotFound), want: CodeItemNotFound},
		{name: "auction_not_found", err: ErrAuctionNotFound, want: CodeAuctionNotFound},
		{name: "closed", err: fmt.Errorf("service: %w - ended", ErrAuctionClosed), want: CodeAuctionClosed},
		{name: "too_low", err: ErrBidTooLow, want: CodeBidTooLow},
		{name: "invalid", err: ErrInvalidBid, want: CodeInvalidBid},
		{name: "no_bids", err: ErrNoBids, want: CodeNoBids},
		{name: "generic", err: errors.New("connection refused"), want: CodeInternal},
		{
			name: "resolution_error",
			err:  &ResolutionError{ItemID: "item-1", LastPrice: decimal.NewFromInt(130), Err: errors.New("disk full")},
			want: CodeInternal,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, ErrorCode(tc.err))
			require.Equal(t, tc.want != CodeInternal, IsValidationError(tc.err))
		})
	}
}

func TestResolutionError_Unwrap(t *testing.T) {
	cause := errors.New("write failed")
	err := fmt.Errorf("service: %w", &ResolutionError{ItemID: "item-1", LastPrice: decimal.NewFromInt(140), Rounds: 3, Err: cause})

	require.ErrorIs(t, err, cause)

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	require.True(t, resErr.LastPrice.Equal(decimal.NewFromInt(140)))
	require.Contains(t, err.Error(), "after 3 rounds")
}
