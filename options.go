package sshclient

import (
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	sshfx "github.com/pkg/sshclient/encoding/ssh/filexfer"
)

type options struct {
	maxPacket   uint32
	maxDataLen  int
	maxInflight int
	logger      *zap.Logger
}

func defaultOptions() options {
	return options{
		maxPacket:   sshfx.DefaultMaxPacketLength,
		maxDataLen:  sshfx.DefaultMaxDataLength,
		maxInflight: 64,
		logger:      zap.NewNop(),
	}
}

func (o *options) apply(opts []Option) error {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return err
		}
	}

	return nil
}

// Option specifies an optional setting of a Channel, Client, Shell or Session.
type Option func(*options) error

// WithMaxInflight sets the maximum number of concurrent requests the Client keeps outstanding
// when splitting a large read or write.
//
// It will generate an error if one attempts to set it to a value less than one.
func WithMaxInflight(count int) Option {
	return func(o *options) error {
		if count < 1 {
			return errors.Errorf("max inflight packets cannot be less than 1, was: %d", count)
		}

		o.maxInflight = count

		return nil
	}
}

// WithMaxDataLength sets the maximum length of a data that will be used in SSH_FXP_READ and SSH_FXP_WRITE requests.
// This will also adjust the maximum packet length to at least the data length + 1232 bytes as overhead room.
// (This is the difference between the 34000 byte packet size vs 32768 data packet size.)
//
// The maximum data length can only be increased,
// if an attempt is made to set this value lower than it currently is,
// it will simply not perform any operation.
func WithMaxDataLength(length int) Option {
	withPktLen := WithMaxPacketLength(length + sshfx.MaxPacketLengthOverhead)

	return func(o *options) error {
		if err := withPktLen(o); err != nil {
			return err
		}

		if int64(length) > math.MaxUint32 {
			return errors.Errorf("sshclient: max data length must fit in a uint32: %d", length)
		}

		o.maxDataLen = max(o.maxDataLen, length)

		return nil
	}
}

// WithMaxPacketLength sets the maximum length of a packet that the client will accept.
// A length prefix above it is a fatal decode error.
//
// The maximum packet length can only be increased,
// if an attempt is made to set this value lower than it currently is,
// it will simply not perform any operation.
func WithMaxPacketLength(length int) Option {
	return func(o *options) error {
		if int64(length) > math.MaxUint32 {
			return errors.Errorf("sshclient: max packet length must fit in a uint32: %d", length)
		}

		if length < 0 {
			return nil
		}

		o.maxPacket = max(o.maxPacket, uint32(length))
		return nil
	}
}

// WithLogger sets the logger used for protocol diagnostics.
// The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("sshclient: nil logger")
		}

		o.logger = logger
		return nil
	}
}

// newCorrelationID returns the id every log entry of a single channel or shell is tagged with.
func newCorrelationID() string {
	return uuid.NewString()
}
