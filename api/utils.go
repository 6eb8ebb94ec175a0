package api

import (
	"bytes"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
)

var (
	lastTimestamp int64

	errBodyTooLarge = errors.New("body too large")
)

// nextTimestamp returns a strictly increasing Unix millisecond time so
// changes published by this instance keep their order.
func nextTimestamp() int64 {
	for {
		now := time.Now().UnixMilli()
		last := atomic.LoadInt64(&lastTimestamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastTimestamp, last, now) {
			return now
		}
	}
}

// decodeBody reads a JSON object from r, rejecting unknown fields and bodies
// over taskBodyMaxSize.
func decodeBody(r io.Reader, out any) error {
	data, err := io.ReadAll(io.LimitReader(r, taskBodyMaxSize+1))
	if err != nil {
		return err
	}
	if len(data) > taskBodyMaxSize {
		return errBodyTooLarge
	}
	dec := sonic.ConfigStd.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
