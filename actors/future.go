// MIT License
//
// Copyright (c) 2023-2026 Convoy Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package actors

import (
	"context"
	"sync"
)

// future is a single-assignment completion cell backing the ask pattern. The
// asking party blocks in Await until the future is completed or its context
// expires; the answering party completes it at most once.
type future struct {
	acceptOnce   sync.Once
	completeOnce sync.Once
	done         chan any
	value        any
	err          error
}

// newFuture returns an uncompleted future.
func newFuture() *future {
	return &future{
		done: make(chan any, 1),
	}
}

// wait blocks once, until the result is available or the context is canceled.
func (f *future) wait(ctx context.Context) {
	f.acceptOnce.Do(func() {
		select {
		case result := <-f.done:
			f.setResult(result)
		case <-ctx.Done():
			f.setResult(ctx.Err())
		}
	})
}

// setResult assigns the outcome of the future.
func (f *future) setResult(result any) {
	switch value := result.(type) {
	case error:
		f.err = value
	default:
		f.value = value
	}
}

// Await blocks until the future is completed or the context is canceled and
// returns either the result or an error.
func (f *future) Await(ctx context.Context) (any, error) {
	f.wait(ctx)
	return f.value, f.err
}

// complete completes the future with either a value or an error. Later calls
// are ignored.
func (f *future) complete(value any, err error) {
	f.completeOnce.Do(func() {
		if err != nil {
			f.done <- err
		} else {
			f.done <- value
		}
	})
}
