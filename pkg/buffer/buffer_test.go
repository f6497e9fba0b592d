package buffer_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatlog/pkg/buffer"
)

var _ = Describe("Turn", func() {
	It("stamps the time as ISO-8601 UTC with milliseconds", func() {
		at := time.Date(2024, 3, 5, 10, 4, 5, 123_000_000, time.FixedZone("CET", 3600))
		turn := buffer.NewTurn("hi", "hello", at)
		Expect(turn.Timestamp).To(Equal("2024-03-05T09:04:05.123Z"))
	})

	It("serializes with user, bot and timestamp keys", func() {
		turn := buffer.Turn{User: "hi", Bot: "hello", Timestamp: "2024-03-05T09:04:05.123Z"}
		entry, err := turn.Marshal()
		Expect(err).NotTo(HaveOccurred())
		Expect(entry).To(MatchJSON(`{"user":"hi","bot":"hello","timestamp":"2024-03-05T09:04:05.123Z"}`))

		parsed, err := buffer.ParseTurn(entry)
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed).To(Equal(turn))
	})

	It("rejects a malformed entry", func() {
		_, err := buffer.ParseTurn("{not json")
		Expect(err).To(HaveOccurred())
	})
})

// behavesLikeABuffer runs the shared Buffer and Locker contract against an implementation.
func behavesLikeABuffer(newBuffer func() (buffer.Buffer, buffer.Locker)) {
	var (
		ctx    context.Context
		buf    buffer.Buffer
		locker buffer.Locker
	)

	turn := func(user string) buffer.Turn {
		return buffer.NewTurn(user, "re: "+user, time.Unix(1700000000, 0))
	}

	BeforeEach(func() {
		ctx = context.Background()
		buf, locker = newBuffer()
	})

	AfterEach(func() {
		Expect(buf.Close()).To(Succeed())
	})

	It("reports 0 for an absent session", func() {
		n, err := buf.Length(ctx, "missing")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(0))
	})

	It("appends in order and counts", func() {
		Expect(buf.Append(ctx, "s1", turn("hi"))).To(Succeed())
		Expect(buf.Append(ctx, "s1", turn("how are you"))).To(Succeed())
		Expect(buf.Append(ctx, "s2", turn("other"))).To(Succeed())

		n, err := buf.Length(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))

		turns, err := buf.Peek(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(turns).To(HaveLen(2))
		Expect(turns[0].User).To(Equal("hi"))
		Expect(turns[1].User).To(Equal("how are you"))
	})

	It("drains the whole list and leaves it empty", func() {
		for _, u := range []string{"hi", "how are you", "bye"} {
			Expect(buf.Append(ctx, "s1", turn(u))).To(Succeed())
		}

		turns, err := buf.Drain(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(turns).To(HaveLen(3))
		Expect(turns[2].User).To(Equal("bye"))
		Expect(turns[2].Bot).To(Equal("re: bye"))

		n, err := buf.Length(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(0))
	})

	It("drains an absent session to an empty batch", func() {
		turns, err := buf.Drain(ctx, "missing")
		Expect(err).NotTo(HaveOccurred())
		Expect(turns).To(BeEmpty())
	})

	It("trims only the first n entries", func() {
		for _, u := range []string{"a", "b", "c"} {
			Expect(buf.Append(ctx, "s1", turn(u))).To(Succeed())
		}

		Expect(buf.Trim(ctx, "s1", 2)).To(Succeed())
		turns, err := buf.Peek(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(turns).To(HaveLen(1))
		Expect(turns[0].User).To(Equal("c"))

		Expect(buf.Trim(ctx, "s1", 5)).To(Succeed())
		n, err := buf.Length(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(0))
	})

	It("reads a bounded head and reports the entries read", func() {
		for _, u := range []string{"a", "b", "c"} {
			Expect(buf.Append(ctx, "s1", turn(u))).To(Succeed())
		}

		turns, read, err := buf.Head(ctx, "s1", 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(read).To(Equal(2))
		Expect(turns).To(HaveLen(2))
		Expect(turns[1].User).To(Equal("b"))

		turns, read, err = buf.Head(ctx, "s1", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(read).To(Equal(3))
		Expect(turns).To(HaveLen(3))

		n, err := buf.Length(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(3))
	})

	It("serializes holders of the same session lock", func() {
		unlock, err := locker.Lock(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())

		waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(waitCtx, "s1")
		var timeout buffer.ErrLockTimeout
		Expect(errors.As(err, &timeout)).To(BeTrue())
		Expect(timeout.SessionID).To(Equal("s1"))

		other, err := locker.Lock(ctx, "s2")
		Expect(err).NotTo(HaveOccurred())
		other()

		unlock()
		again, err := locker.Lock(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		again()
	})
}

var _ = Describe("MemoryBuffer", func() {
	behavesLikeABuffer(func() (buffer.Buffer, buffer.Locker) {
		b := buffer.NewMemoryBuffer()
		return b, b
	})

	It("forgets a session lock once nobody holds or waits for it", func() {
		ctx := context.Background()
		b := buffer.NewMemoryBuffer()

		unlock, err := b.Lock(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())

		waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err = b.Lock(waitCtx, "s1")
		Expect(err).To(HaveOccurred())
		Expect(b.LockEntries()).To(Equal(1))

		unlock()
		unlock()
		Expect(b.LockEntries()).To(Equal(0))

		for i := 0; i < 50; i++ {
			release, err := b.Lock(ctx, fmt.Sprintf("session-%d", i))
			Expect(err).NotTo(HaveOccurred())
			release()
		}
		Expect(b.LockEntries()).To(Equal(0))
	})
})
