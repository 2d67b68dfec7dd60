package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	repository "github.com/okian/hiscore/internal/adapters/repository"
	service "github.com/okian/hiscore/internal/app"
	"github.com/okian/hiscore/internal/domain/ledger"
	"github.com/okian/hiscore/internal/domain/tier"
	"github.com/okian/hiscore/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// medalField places nibble at the medal position of slot.
func medalField(slot int, nibble uint8) int64 {
	return int64(nibble) << (uint(slot) * 4)
}

func startService(opts ...service.Option) *service.Service {
	svc := service.New(opts...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

type failingStore struct {
	*repository.MemoryStore
	failSave bool
}

var errDiskFull = errors.New("disk full")

func (f *failingStore) Save(ctx context.Context, refID string, lg *ledger.Ledger) error {
	if f.failSave {
		return errDiskFull
	}
	return f.MemoryStore.Save(ctx, refID, lg)
}

// gatedStore blocks its first Save until release is closed and then fails
// it. Later saves go through.
type gatedStore struct {
	*repository.MemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) Save(ctx context.Context, refID string, lg *ledger.Ledger) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
		return errDiskFull
	}
	return g.MemoryStore.Save(ctx, refID, lg)
}

func TestService_Start(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(
			service.WithDedupeSize(100),
			service.WithLockStripes(4),
			service.WithGameVersion("v21"),
		)
		defer svc.Stop()

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
			})

			Convey("And it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["gameVersion"], ShouldEqual, "v21")
				So(stats["storedPlayers"], ShouldEqual, 0)
				So(stats["storeVersion"], ShouldEqual, "v21")
			})

			Convey("And starting twice should be a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})
		})
	})

	Convey("Given a service with an unknown backend", t, func() {
		svc := service.New(service.WithBackend("redis", ""))

		Convey("Then start should fail", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, service.ErrInvalidBackend), ShouldBeTrue)
		})

		Convey("Then a file backend without a directory fails too", func() {
			err := service.New(service.WithBackend("file", "")).Start(context.Background())
			So(errors.Is(err, service.ErrInvalidBackend), ShouldBeTrue)
		})
	})

	Convey("Given a service that was never started", t, func() {
		svc := service.New()

		Convey("Then reads and writes are refused", func() {
			_, err := svc.ReadProfile(context.Background(), "player1")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Write(context.Background(), service.WriteRequest{RefID: "player1"})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})
}

func TestService_WriteAndRead(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startService()
		defer svc.Stop()
		ctx := context.Background()

		Convey("When a player clears song 5 sheet 2 and plays it again", func() {
			res, err := svc.Write(ctx, service.WriteRequest{
				RefID: "player1",
				Stages: []ledger.Stage{
					{Song: 5, Slot: 2, MedalField: medalField(2, 11), Score: 987},
				},
			})
			So(err, ShouldBeNil)
			So(res.Merged, ShouldEqual, 1)
			So(res.WriteID, ShouldNotBeBlank)

			_, err = svc.Write(ctx, service.WriteRequest{
				RefID: "player1",
				Stages: []ledger.Stage{
					{Song: 5, Slot: 2, MedalField: medalField(2, 10), Score: 950},
				},
			})
			So(err, ShouldBeNil)

			Convey("Then the best score and tier survive", func() {
				view, err := svc.Chart(ctx, "player1", ledger.ChartID{Song: 5, Slot: 2})
				So(err, ShouldBeNil)
				So(view.Present, ShouldBeTrue)
				So(view.Packed, ShouldBeTrue)
				So(int(view.Record.BestScore), ShouldEqual, 987)
				So(int(view.Record.PlayCount), ShouldEqual, 2)
				So(view.Record.ClearTier, ShouldEqual, tier.FullComboStar)
				So(int(view.PackedScore), ShouldEqual, 987)
				So(int(view.PackedMedal), ShouldEqual, 11)
				So(view.PackedTier, ShouldEqual, tier.FullComboStar)
			})

			Convey("Then the profile carries the packed arrays", func() {
				p, err := svc.ReadProfile(ctx, "player1")
				So(err, ShouldBeNil)
				So(p.GameVersion, ShouldEqual, "v21")
				So(len(p.ClearMedal), ShouldEqual, 1350)
				So(len(p.ClearMedalSub), ShouldEqual, 1350)
				So(len(p.Hiscore), ShouldEqual, 11476)
				So(int(p.ClearMedal[5]), ShouldEqual, 11<<8)
				So(p.Charts, ShouldEqual, 1)
			})
		})

		Convey("When a write mixes valid and out-of-range stages", func() {
			res, err := svc.Write(ctx, service.WriteRequest{
				RefID: "player2",
				Stages: []ledger.Stage{
					{Song: -1, Slot: 0, Score: 100},
					{Song: 1351, Slot: 0, Score: 100},
					{Song: 3, Slot: 4, Score: 100},
					{Song: 3, Slot: 0, MedalField: medalField(0, 4), Score: 500},
					{Song: 1350, Slot: 1, MedalField: medalField(1, 15), Score: 700},
				},
			})

			Convey("Then only in-range stages merge", func() {
				So(err, ShouldBeNil)
				So(res.Merged, ShouldEqual, 2)
				So(res.Skipped, ShouldEqual, 3)
				So(res.UnknownTiers, ShouldEqual, 1)
			})

			Convey("And the catalog edge is stored but not packed", func() {
				view, err := svc.Chart(ctx, "player2", ledger.ChartID{Song: 1350, Slot: 1})
				So(err, ShouldBeNil)
				So(view.Present, ShouldBeTrue)
				So(view.Packed, ShouldBeFalse)
				So(int(view.PackedScore), ShouldEqual, 0)
			})

			Convey("And the unknown medal merges as no tier", func() {
				view, err := svc.Chart(ctx, "player2", ledger.ChartID{Song: 3, Slot: 0})
				So(err, ShouldBeNil)
				So(view.Record.ClearTier, ShouldEqual, tier.None)
				So(int(view.PackedScore), ShouldEqual, 500)
			})
		})

		Convey("When reading a player that never wrote", func() {
			p, err := svc.ReadProfile(ctx, "fresh")

			Convey("Then the arrays are all zero", func() {
				So(err, ShouldBeNil)
				So(p.Charts, ShouldEqual, 0)
				for _, b := range p.Hiscore {
					So(int(b), ShouldEqual, 0)
				}
			})
		})

		Convey("When the ref id is invalid", func() {
			_, err := svc.ReadProfile(ctx, "../etc")
			So(errors.Is(err, repository.ErrInvalidRefID), ShouldBeTrue)
			_, err = svc.Write(ctx, service.WriteRequest{RefID: ""})
			So(errors.Is(err, repository.ErrInvalidRefID), ShouldBeTrue)
		})
	})
}

func TestService_WriteLimits(t *testing.T) {
	Convey("Given a service accepting two stages per write", t, func() {
		svc := startService(service.WithMaxStagesPerWrite(2))
		defer svc.Stop()

		Convey("When three stages are written", func() {
			_, err := svc.Write(context.Background(), service.WriteRequest{
				RefID:  "player1",
				Stages: make([]ledger.Stage, 3),
			})

			Convey("Then the write is rejected", func() {
				So(errors.Is(err, service.ErrTooManyStages), ShouldBeTrue)
			})
		})
	})
}

func TestService_Dedupe(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startService()
		defer svc.Stop()
		ctx := context.Background()
		req := service.WriteRequest{
			RefID:     "player1",
			SessionID: "session-1",
			Stages:    []ledger.Stage{{Song: 1, Slot: 0, Score: 10}},
		}

		Convey("When the same session is written twice", func() {
			first, err := svc.Write(ctx, req)
			So(err, ShouldBeNil)
			second, err := svc.Write(ctx, req)
			So(err, ShouldBeNil)

			Convey("Then the plays are counted once", func() {
				So(first.Duplicate, ShouldBeFalse)
				So(second.Duplicate, ShouldBeTrue)
				view, err := svc.Chart(ctx, "player1", ledger.ChartID{Song: 1, Slot: 0})
				So(err, ShouldBeNil)
				So(int(view.Record.PlayCount), ShouldEqual, 1)
				So(svc.Size(), ShouldEqual, int64(1))
			})
		})

		Convey("When writes carry no session id", func() {
			req.SessionID = ""
			_, _ = svc.Write(ctx, req)
			_, _ = svc.Write(ctx, req)

			Convey("Then every write is merged", func() {
				view, _ := svc.Chart(ctx, "player1", ledger.ChartID{Song: 1, Slot: 0})
				So(int(view.Record.PlayCount), ShouldEqual, 2)
			})
		})
	})
}

func TestService_StoreFailure(t *testing.T) {
	Convey("Given a service whose store fails to save", t, func() {
		store := &failingStore{MemoryStore: repository.NewMemoryStore("v21"), failSave: true}
		svc := startService(service.WithStore(store))
		defer svc.Stop()
		ctx := context.Background()
		req := service.WriteRequest{
			RefID:     "player1",
			SessionID: "session-1",
			Stages:    []ledger.Stage{{Song: 1, Slot: 0, Score: 10}},
		}

		Convey("When a write fails", func() {
			_, err := svc.Write(ctx, req)

			Convey("Then the error is propagated", func() {
				So(errors.Is(err, errDiskFull), ShouldBeTrue)
			})

			Convey("And the session can be retried once the store recovers", func() {
				store.failSave = false
				res, err := svc.Write(ctx, req)
				So(err, ShouldBeNil)
				So(res.Duplicate, ShouldBeFalse)
				So(res.Merged, ShouldEqual, 1)
			})
		})
	})
}

func TestService_DuplicateDuringFailedWrite(t *testing.T) {
	Convey("Given a write whose save is in flight and about to fail", t, func() {
		store := &gatedStore{
			MemoryStore: repository.NewMemoryStore("v21"),
			entered:     make(chan struct{}),
			release:     make(chan struct{}),
		}
		svc := startService(service.WithStore(store))
		defer svc.Stop()
		ctx := context.Background()
		req := service.WriteRequest{
			RefID:     "player1",
			SessionID: "session-1",
			Stages:    []ledger.Stage{{Song: 1, Slot: 0, Score: 10}},
		}

		firstErr := make(chan error, 1)
		go func() {
			_, err := svc.Write(ctx, req)
			firstErr <- err
		}()
		<-store.entered

		Convey("When the same session is retried concurrently", func() {
			secondRes := make(chan service.WriteResult, 1)
			go func() {
				res, _ := svc.Write(ctx, req)
				secondRes <- res
			}()
			// let the retry reach the player's lock before the save fails
			time.Sleep(20 * time.Millisecond)
			close(store.release)

			Convey("Then the retry merges once the first attempt rolls back", func() {
				So(errors.Is(<-firstErr, errDiskFull), ShouldBeTrue)
				res := <-secondRes
				So(res.Duplicate, ShouldBeFalse)
				So(res.Merged, ShouldEqual, 1)

				view, err := svc.Chart(ctx, "player1", ledger.ChartID{Song: 1, Slot: 0})
				So(err, ShouldBeNil)
				So(int(view.Record.PlayCount), ShouldEqual, 1)
			})
		})
	})
}

func TestService_ConcurrentWrites(t *testing.T) {
	Convey("Given a started service with few lock stripes", t, func() {
		svc := startService(service.WithLockStripes(2))
		defer svc.Stop()
		ctx := context.Background()

		Convey("When many writers hit the same chart", func() {
			const writers = 50
			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(score int64) {
					defer wg.Done()
					_, _ = svc.Write(ctx, service.WriteRequest{
						RefID:  "player1",
						Stages: []ledger.Stage{{Song: 7, Slot: 3, Score: score}},
					})
				}(int64(i))
			}
			wg.Wait()

			Convey("Then no play is lost", func() {
				view, err := svc.Chart(ctx, "player1", ledger.ChartID{Song: 7, Slot: 3})
				So(err, ShouldBeNil)
				So(int(view.Record.PlayCount), ShouldEqual, writers)
				So(int(view.Record.BestScore), ShouldEqual, writers-1)
			})
		})
	})
}

func TestService_FileBackend(t *testing.T) {
	Convey("Given a service backed by files", t, func() {
		dir := t.TempDir()
		svc := startService(service.WithBackend("file", dir))
		ctx := context.Background()

		_, err := svc.Write(ctx, service.WriteRequest{
			RefID:  "player1",
			Stages: []ledger.Stage{{Song: 5, Slot: 2, MedalField: medalField(2, 11), Score: 987}},
		})
		So(err, ShouldBeNil)
		svc.Stop()

		Convey("When a new service reopens the directory", func() {
			again := startService(service.WithBackend("file", dir))
			defer again.Stop()

			Convey("Then the ledger is still there", func() {
				p, err := again.ReadProfile(ctx, "player1")
				So(err, ShouldBeNil)
				So(p.Charts, ShouldEqual, 1)
				So(int(p.ClearMedal[5]), ShouldEqual, 11<<8)
				So(again.GetStats()["storedPlayers"], ShouldEqual, 1)
			})
		})
	})
}
