package wifi

import (
	"time"

	"go.uber.org/zap"

	"github.com/wzhhnet/esp32-mg-server/internal/logging"
	"github.com/wzhhnet/esp32-mg-server/internal/record"
)

func (c *Controller) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case env := <-c.events:
			err := c.dispatch(env.ev)
			if env.reply != nil {
				env.reply <- err
			}
		}
	}
}

func (c *Controller) dispatch(ev Event) error {
	switch ev.Class() {
	case ClassUser:
		return c.handleUser(ev)
	case ClassRadio:
		return c.handleRadio(ev)
	case ClassAddress:
		return c.handleAddress(ev)
	default:
		return &Error{Kind: KindInvalid, Op: "dispatch " + ev.Name()}
	}
}

func (c *Controller) handleUser(ev Event) error {
	logging.Debug("User request", zap.String("event", ev.Name()))
	err := c.apply(ev)
	if err != nil {
		logging.Warn("User request failed", zap.String("event", ev.Name()), zap.Error(err))
	}
	return err
}

func (c *Controller) handleRadio(ev Event) error {
	if d, ok := ev.(Disconnected); ok {
		logging.Debug("Radio event", zap.String("event", ev.Name()), zap.String("reason", d.Reason))
	} else {
		logging.Debug("Radio event", zap.String("event", ev.Name()))
	}
	err := c.apply(ev)
	if err != nil {
		logging.Error("Radio event handling failed", zap.String("event", ev.Name()), zap.Error(err))
	}
	return err
}

func (c *Controller) handleAddress(ev Event) error {
	if a, ok := ev.(AddressAcquired); ok {
		logging.Info("Address acquired", zap.String("ip", a.IP))
	}
	err := c.apply(ev)
	if err != nil {
		logging.Error("Address event handling failed", zap.String("event", ev.Name()), zap.Error(err))
	}
	return err
}

// apply runs one transition. The model is replaced only after every driver
// command of the batch was accepted; otherwise the previous model stays,
// with its record mirror updated to whatever reached the store.
func (c *Controller) apply(ev Event) error {
	c.mu.Lock()
	cur := c.model.clone()
	c.mu.Unlock()

	next, cmds := Transition(c.policy, cur, ev)
	res := c.execute(cmds)

	commit := next
	if res.err != nil {
		commit = cur
	}
	if res.landed != nil {
		commit.Record = *res.landed
	}

	c.mu.Lock()
	c.model = commit
	c.mu.Unlock()

	if res.err != nil {
		return res.err
	}
	if next.State != cur.State {
		logging.LogTransition(cur.State.String(), next.State.String(), ev.Name())
	}
	for _, o := range res.outcomes {
		c.publish(o, next)
	}
	for _, s := range res.schedules {
		c.schedule(s.Event, s.After)
	}
	return nil
}

type batchResult struct {
	landed    *record.Record
	outcomes  []Outcome
	schedules []Schedule
	err       error
}

// execute issues cmds in order. Outcomes and timers are collected and only
// released by apply once the batch succeeded.
func (c *Controller) execute(cmds []Command) batchResult {
	var res batchResult
	for _, cmd := range cmds {
		switch cmd := cmd.(type) {
		case SetMode:
			res.err = c.call(cmd, func() error { return c.driver.SetMode(cmd.Mode) })
		case Start:
			res.err = c.call(cmd, c.driver.Start)
		case SetCredentials:
			logging.Info("Committing credentials to radio", zap.Stringer("credentials", cmd.Credentials))
			res.err = c.call(cmd, func() error { return c.driver.SetCredentials(cmd.Credentials) })
		case Connect:
			res.err = c.call(cmd, c.driver.Connect)
		case Disconnect:
			res.err = c.call(cmd, c.driver.Disconnect)
		case Scan:
			res.err = c.call(cmd, c.driver.Scan)
		case CancelScan:
			if err := c.driver.CancelScan(); err != nil {
				logging.Warn("Scan cancel failed", zap.Error(err))
			}
		case EraseRecord:
			if err := c.records.Erase(); err != nil {
				res.err = &Error{Kind: KindPersistence, Op: "erase record", Err: err}
				break
			}
			empty := record.Record{}
			res.landed = &empty
		case WriteRecord:
			if err := c.records.Write(cmd.Record); err != nil {
				logging.Warn("Provisioning record write failed, will retry",
					zap.String("ssid", cmd.Record.SSID),
					zap.Duration("retry_in", c.cfg.RecordRetry),
					zap.Error(err),
				)
				res.schedules = append(res.schedules, Schedule{Event: FlushRecord{}, After: c.cfg.RecordRetry})
				continue
			}
			r := cmd.Record
			res.landed = &r
			res.outcomes = append(res.outcomes, Outcome{Kind: OutcomeProvisioned, SSID: r.SSID, IP: r.IP})
		case Report:
			res.outcomes = append(res.outcomes, cmd.Outcome)
		case Reject:
			res.err = cmd.Err
		case Schedule:
			res.schedules = append(res.schedules, cmd)
		}
		if res.err != nil {
			return res
		}
	}
	return res
}

func (c *Controller) call(cmd Command, fn func() error) error {
	err := fn()
	logging.LogDriverCommand(cmd.Name(), err)
	if err != nil {
		return &Error{Kind: KindDriver, Op: cmd.Name(), Err: err}
	}
	return nil
}

func (c *Controller) publish(o Outcome, m Model) {
	if o.State == "" {
		o.State = m.State.String()
	}
	if o.Time.IsZero() {
		o.Time = time.Now()
	}
	switch o.Kind {
	case OutcomeFailed, OutcomeTimeout:
		logging.Warn("Provisioning outcome", zap.String("kind", string(o.Kind)), zap.String("ssid", o.SSID), zap.Int("retries", o.Retries))
	default:
		logging.Info("Provisioning outcome", zap.String("kind", string(o.Kind)), zap.String("ssid", o.SSID), zap.String("ip", o.IP))
	}
	c.notifier.Notify(o)
}
