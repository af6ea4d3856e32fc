package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/pkg/errors"

	"position_engine/internal/migration"
	"position_engine/internal/models"
	"position_engine/internal/modules/config"
	redis "position_engine/internal/modules/redis/service"
	safety "position_engine/internal/modules/safety/service"
	store "position_engine/internal/modules/store/service"
	"position_engine/pkg/db"
)

type ctl struct {
	cfg   *config.Config
	out   io.Writer
	nowFn func() time.Time
}

func (c *ctl) now() time.Time {
	if c.nowFn != nil {
		return c.nowFn()
	}
	return time.Now()
}

// withStore открывает бэкенд из конфига и закрывает его после команды.
func (c *ctl) withStore(ctx context.Context, fn func(context.Context, store.Store) error) error {
	st, closeFn, err := openStore(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, st)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case "postgres":
		pool, err := db.NewPool(ctx, db.PoolConfig{DSN: cfg.DB})
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect postgres")
		}
		tm := db.NewPgTxManager(pool)
		if err := db.Migrate(ctx, tm.Conn()); err != nil {
			tm.Close()
			return nil, nil, errors.Wrap(err, "migrate postgres")
		}
		return store.NewPgStore(tm), tm.Close, nil
	case "redis":
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect redis")
		}
		return store.NewRedisStore(rc.Underlying(), cfg.Store.Namespace), func() { _ = rc.Close() }, nil
	default:
		return store.NewFileStore(cfg.Store.Path, cfg.Store.SafetyPath), func() {}, nil
	}
}

func (c *ctl) positions(ctx context.Context, st store.Store) error {
	all, err := st.LoadAll(ctx)
	if err != nil {
		return errors.Wrap(err, "load positions")
	}
	if len(all) == 0 {
		fmt.Fprintln(c.out, "no stored positions")
		return nil
	}

	symbols := make([]string, 0, len(all))
	for sym := range all {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetTitle("STORED POSITIONS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Symbol", "Side", "Entry", "Size", "Stop", "Trailing", "Next", "Taken", "Class", "Age", "Mode"})
	for _, sym := range symbols {
		rec := all[sym]
		stop := "-"
		if rec.HasStop() {
			stop = fmt.Sprintf("%.6g", rec.Stop())
		}
		next := "-"
		if lvl, ok := rec.NextLevel(); ok {
			next = fmt.Sprintf("%s @ %.6g", lvl, rec.ProfitLevels[lvl])
		}
		mode := "live"
		if rec.PaperTrade {
			mode = "paper"
		}
		if rec.SyncedFromExchange {
			mode += " (synced)"
		}
		t.AppendRow(table.Row{
			sym, strings.ToUpper(string(rec.Direction)), fmt.Sprintf("%.6g", rec.EntryPrice),
			fmt.Sprintf("%.6g", rec.Size), stop, rec.TrailingStopActive, next, takenLevels(rec),
			rec.SignalClass, rec.Age(c.now()).Round(time.Minute), mode,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	t.Render()
	return nil
}

func takenLevels(rec models.PositionRecord) string {
	var out []string
	for _, lvl := range models.ProfitLevelOrder {
		if rec.ProfitsTaken[lvl] {
			out = append(out, string(lvl))
		}
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ",")
}

func (c *ctl) resetEmergencyStop(ctx context.Context, st store.Store) error {
	gate := safety.NewGate(c.cfg, nil, st, nil, nil, nil)
	if err := gate.Load(ctx); err != nil {
		return errors.Wrap(err, "load safety state")
	}
	before := gate.State()
	if !before.EmergencyStop {
		fmt.Fprintln(c.out, "emergency stop is not set")
		return nil
	}
	if err := gate.ResetEmergencyStop(ctx); err != nil {
		return errors.Wrap(err, "save safety state")
	}
	fmt.Fprintf(c.out, "emergency stop cleared (was: %s since %s)\n",
		before.EmergencyReason, before.TriggeredAt.Format(time.RFC3339))
	return nil
}

func (c *ctl) migrate(ctx context.Context, st store.Store) error {
	all, err := st.LoadAll(ctx)
	if err != nil {
		return errors.Wrap(err, "load positions")
	}
	upgraded, changed := migration.UpgradeAll(all, c.cfg.Risk.StopATRMultiplier)
	sort.Strings(changed)
	for _, sym := range changed {
		if err := st.Save(ctx, sym, upgraded[sym]); err != nil {
			return errors.Wrapf(err, "save %s", sym)
		}
	}
	fmt.Fprintf(c.out, "%d records, %d upgraded %v\n", len(all), len(changed), changed)
	return nil
}

func (c *ctl) clear(ctx context.Context, st store.Store) error {
	all, err := st.LoadAll(ctx)
	if err != nil {
		return errors.Wrap(err, "load positions")
	}
	if err := st.ClearAll(ctx); err != nil {
		return errors.Wrap(err, "clear positions")
	}
	fmt.Fprintf(c.out, "removed %d stored positions\n", len(all))
	return nil
}
