package sched_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/motorctl/internal/sched"
)

const unit = time.Millisecond

// recorder logs the order tasks run in.
type recorder struct {
	order []string
}

func (r *recorder) task(name string, priority int, period time.Duration) *sched.Task {
	t, err := sched.NewTask(sched.Config{Name: name, Priority: priority, Period: period, Profile: true},
		sched.StepFunc(func(time.Duration) error {
			r.order = append(r.order, name)
			return nil
		}))
	Expect(err).NotTo(HaveOccurred())
	return t
}

var _ = Describe("Scheduler", func() {
	var (
		clock *sched.ManualClock
		s     *sched.Scheduler
		rec   *recorder
	)

	BeforeEach(func() {
		clock = sched.NewManualClock()
		s = sched.New(clock)
		rec = &recorder{}
	})

	Describe("Register", func() {
		It("rejects duplicate names", func() {
			Expect(s.Register(rec.task("a", 1, unit))).To(Succeed())
			err := s.Register(rec.task("a", 2, unit))
			Expect(errors.Is(err, sched.ErrDuplicateTask)).To(BeTrue())
		})

		It("rejects non-positive periods at construction", func() {
			_, err := sched.NewTask(sched.Config{Name: "bad", Period: 0}, sched.StepFunc(func(time.Duration) error { return nil }))
			Expect(errors.Is(err, sched.ErrInvalidPeriod)).To(BeTrue())
		})

		It("rejects a nil stepper", func() {
			_, err := sched.NewTask(sched.Config{Name: "nil", Period: unit}, nil)
			Expect(err).To(MatchError(sched.ErrNilTask))
		})

		It("releases a task one period after registration", func() {
			t := rec.task("a", 1, 5*unit)
			Expect(s.Register(t)).To(Succeed())
			Expect(t.State()).To(Equal(sched.StateReady))
			Expect(t.NextRun()).To(Equal(5 * unit))
		})
	})

	Describe("Tick", func() {
		It("idles when nothing is ready", func() {
			Expect(s.Register(rec.task("a", 1, 10*unit))).To(Succeed())
			dispatched, err := s.Tick()
			Expect(err).NotTo(HaveOccurred())
			Expect(dispatched).To(BeFalse())
			Expect(s.Idle()).To(Equal(uint64(1)))
		})

		DescribeTable("dispatches floor(N/P) times over N ticks",
			func(period, ticks int) {
				t := rec.task("p", 1, time.Duration(period)*unit)
				Expect(s.Register(t)).To(Succeed())
				for i := 0; i < ticks; i++ {
					clock.Advance(unit)
					_, err := s.Tick()
					Expect(err).NotTo(HaveOccurred())
				}
				Expect(t.Runs()).To(Equal(uint64(ticks / period)))
				Expect(t.NextRun()).To(Equal(time.Duration(ticks/period+1) * time.Duration(period) * unit))
			},
			Entry("period 1", 1, 50),
			Entry("period 3", 3, 100),
			Entry("period 7", 7, 100),
			Entry("period larger than N", 40, 39),
		)

		It("dispatches the strictly higher priority task first", func() {
			Expect(s.Register(rec.task("low", 1, unit))).To(Succeed())
			Expect(s.Register(rec.task("high", 5, unit))).To(Succeed())
			Expect(s.Register(rec.task("mid", 3, unit))).To(Succeed())

			clock.Advance(unit)
			for i := 0; i < 3; i++ {
				_, _ = s.Tick()
			}
			Expect(rec.order).To(Equal([]string{"high", "mid", "low"}))
		})

		It("breaks priority ties by registration order", func() {
			Expect(s.Register(rec.task("first", 2, unit))).To(Succeed())
			Expect(s.Register(rec.task("second", 2, unit))).To(Succeed())

			clock.Advance(unit)
			_, _ = s.Tick()
			_, _ = s.Tick()
			Expect(rec.order).To(Equal([]string{"first", "second"}))
		})

		It("keeps a fixed schedule when a task falls behind", func() {
			t := rec.task("late", 1, 10*unit)
			Expect(s.Register(t)).To(Succeed())

			clock.Advance(35 * unit)
			for i := 0; i < 5; i++ {
				_, _ = s.Tick()
			}
			Expect(t.Runs()).To(Equal(uint64(3)))
			Expect(t.NextRun()).To(Equal(40 * unit))
			Expect(t.Profile().MaxLate).To(Equal(25 * unit))
		})

		It("marks a failing task dead and keeps the others running", func() {
			boom := errors.New("encoder unplugged")
			bad, err := sched.NewTask(sched.Config{Name: "bad", Priority: 9, Period: unit},
				sched.StepFunc(func(time.Duration) error { return boom }))
			Expect(err).NotTo(HaveOccurred())

			var handled []*sched.TaskFault
			s = sched.New(clock, sched.WithFaultHandler(func(f *sched.TaskFault) { handled = append(handled, f) }))
			Expect(s.Register(bad)).To(Succeed())
			good := rec.task("good", 1, unit)
			Expect(s.Register(good)).To(Succeed())

			clock.Advance(unit)
			_, err = s.Tick()
			var fault *sched.TaskFault
			Expect(errors.As(err, &fault)).To(BeTrue())
			Expect(fault.Task).To(Equal("bad"))
			Expect(errors.Is(err, boom)).To(BeTrue())
			Expect(bad.State()).To(Equal(sched.StateDead))
			Expect(handled).To(HaveLen(1))

			for i := 0; i < 3; i++ {
				clock.Advance(unit)
				_, err := s.Tick()
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(bad.Runs()).To(Equal(uint64(1)))
			Expect(good.Runs()).To(BeNumerically(">=", 3))
		})

		It("never dispatches a killed task again", func() {
			t := rec.task("victim", 2, unit)
			other := rec.task("other", 1, unit)
			Expect(s.Register(t)).To(Succeed())
			Expect(s.Register(other)).To(Succeed())

			clock.Advance(unit)
			_, _ = s.Tick()
			Expect(t.Runs()).To(Equal(uint64(1)))

			t.Kill(clock.Now())
			Expect(t.State()).To(Equal(sched.StateDead))
			for i := 0; i < 5; i++ {
				clock.Advance(unit)
				_, err := s.Tick()
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(t.Runs()).To(Equal(uint64(1)))
			Expect(other.Runs()).To(BeNumerically(">=", 5))
		})

		It("leaves a task that kills itself dead, not ready", func() {
			var self *sched.Task
			self, _ = sched.NewTask(sched.Config{Name: "self", Period: unit, Trace: true, TraceSize: 8},
				sched.StepFunc(func(now time.Duration) error {
					self.Kill(now)
					return nil
				}))
			Expect(s.Register(self)).To(Succeed())

			clock.Advance(unit)
			dispatched, err := s.Tick()
			Expect(dispatched).To(BeTrue())
			Expect(err).NotTo(HaveOccurred())
			Expect(self.State()).To(Equal(sched.StateDead))
			Expect(s.Faults()).To(BeEmpty())

			clock.Advance(unit)
			dispatched, _ = s.Tick()
			Expect(dispatched).To(BeFalse())
			Expect(self.Runs()).To(Equal(uint64(1)))
		})

		It("converts a panic into a fault", func() {
			t, err := sched.NewTask(sched.Config{Name: "panicky", Period: unit},
				sched.StepFunc(func(time.Duration) error { panic("divide by zero") }))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Register(t)).To(Succeed())

			clock.Advance(unit)
			_, err = s.Tick()
			Expect(errors.Is(err, sched.ErrPanic)).To(BeTrue())
			Expect(t.State()).To(Equal(sched.StateDead))
			Expect(s.Faults()).To(HaveLen(1))
		})
	})

	Describe("Run", func() {
		It("completes the in-flight slice before stopping", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var started, finished int
			t, err := sched.NewTask(sched.Config{Name: "stopper", Period: 2 * unit},
				sched.StepFunc(func(time.Duration) error {
					started++
					if started == 4 {
						cancel()
					}
					finished++
					return nil
				}))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Register(t)).To(Succeed())

			Expect(s.Run(ctx)).To(Succeed())
			Expect(started).To(Equal(4))
			Expect(finished).To(Equal(4))
			Expect(clock.Now()).To(Equal(8 * unit))
		})

		It("returns the faults seen during the run", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			bad, _ := sched.NewTask(sched.Config{Name: "bad", Priority: 2, Period: unit},
				sched.StepFunc(func(time.Duration) error { return errors.New("stall") }))
			n := 0
			good, _ := sched.NewTask(sched.Config{Name: "good", Priority: 1, Period: unit},
				sched.StepFunc(func(time.Duration) error {
					if n++; n == 5 {
						cancel()
					}
					return nil
				}))
			Expect(s.Register(bad)).To(Succeed())
			Expect(s.Register(good)).To(Succeed())

			err := s.Run(ctx)
			var fault *sched.TaskFault
			Expect(errors.As(err, &fault)).To(BeTrue())
			Expect(fault.Task).To(Equal("bad"))
			Expect(good.Runs()).To(Equal(uint64(5)))
		})

		It("exits once every task is dead", func() {
			t, _ := sched.NewTask(sched.Config{Name: "once", Period: unit},
				sched.StepFunc(func(time.Duration) error { return errors.New("done") }))
			Expect(s.Register(t)).To(Succeed())
			Expect(s.Run(context.Background())).To(HaveOccurred())
		})

		It("returns once every task has been killed", func() {
			a := rec.task("a", 2, unit)
			b := rec.task("b", 1, 3*unit)
			Expect(s.Register(a)).To(Succeed())
			Expect(s.Register(b)).To(Succeed())

			var killer *sched.Task
			killer, _ = sched.NewTask(sched.Config{Name: "killer", Priority: 3, Period: 10 * unit},
				sched.StepFunc(func(now time.Duration) error {
					a.Kill(now)
					b.Kill(now)
					killer.Kill(now)
					return nil
				}))
			Expect(s.Register(killer)).To(Succeed())

			done := make(chan error, 1)
			go func() { done <- s.Run(context.Background()) }()
			Eventually(done).Should(Receive(BeNil()))
			Expect(clock.Now()).To(Equal(10 * unit))
			for _, t := range s.Tasks() {
				Expect(t.State()).To(Equal(sched.StateDead))
			}
			Expect(s.Faults()).To(BeEmpty())
		})

		It("refuses registration while running", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var regErr error
			t, _ := sched.NewTask(sched.Config{Name: "registrar", Period: unit},
				sched.StepFunc(func(time.Duration) error {
					regErr = s.Register(rec.task("late", 1, unit))
					cancel()
					return nil
				}))
			Expect(s.Register(t)).To(Succeed())
			Expect(s.Run(ctx)).To(Succeed())
			Expect(regErr).To(MatchError(sched.ErrRunning))
		})
	})

	Describe("Trace", func() {
		It("is absent unless enabled", func() {
			t := rec.task("quiet", 1, unit)
			Expect(t.Trace()).To(BeNil())
		})

		It("stays bounded over a long run", func() {
			t, _ := sched.NewTask(sched.Config{Name: "traced", Period: unit, Trace: true, TraceSize: 8},
				sched.StepFunc(func(time.Duration) error { return nil }))
			Expect(s.Register(t)).To(Succeed())

			for i := 0; i < 100; i++ {
				clock.Advance(unit)
				_, _ = s.Tick()
			}
			entries := t.Trace().Entries()
			Expect(entries).To(HaveLen(8))
			Expect(t.Trace().Lost()).To(BeNumerically(">", 0))
			last := entries[len(entries)-1]
			Expect(last.From).To(Equal(sched.StateRunning))
			Expect(last.To).To(Equal(sched.StateReady))
		})
	})

	It("lists tasks in dispatch order", func() {
		Expect(s.Register(rec.task("b", 1, unit))).To(Succeed())
		Expect(s.Register(rec.task("a", 4, unit))).To(Succeed())
		stats := s.Snapshot()
		Expect(stats).To(HaveLen(2))
		Expect(stats[0].Name).To(Equal("a"))
		Expect(stats[1].Name).To(Equal("b"))
	})
})
