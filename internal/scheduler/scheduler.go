package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gigmarket-backend/internal/logger"
)

// CheckoutExpirer закрывает брошенные платёжные сессии.
type CheckoutExpirer interface {
	ExpireAbandonedCheckouts(ctx context.Context) (int, error)
}

// Scheduler запускает периодические задачи жизненного цикла заказов.
type Scheduler struct {
	cron    *cron.Cron
	log     *logrus.Entry
	timeout time.Duration
}

// New создаёт планировщик с поддержкой секунд в расписании.
func New() *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		log:     logger.WithComponent("scheduler"),
		timeout: 5 * time.Minute,
	}
}

// AddCheckoutExpiry регистрирует задачу отмены неоплаченных заказов.
func (s *Scheduler) AddCheckoutExpiry(spec string, expirer CheckoutExpirer) error {
	if _, err := s.cron.AddFunc(spec, func() { s.expireCheckouts(expirer) }); err != nil {
		return fmt.Errorf("scheduler: некорректное расписание %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) expireCheckouts(expirer CheckoutExpirer) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	count, err := expirer.ExpireAbandonedCheckouts(ctx)
	if err != nil {
		s.log.WithError(err).Error("не удалось отменить просроченные заказы")
		return
	}
	if count > 0 {
		s.log.WithField("count", count).Info("просроченные заказы отменены")
	}
}

// Run запускает задачи и блокируется до отмены ctx, затем ждёт завершения текущих запусков.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.log.WithField("jobs", len(s.cron.Entries())).Info("планировщик запущен")

	<-ctx.Done()

	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		s.log.Info("планировщик остановлен")
	case <-time.After(5 * time.Second):
		s.log.Warn("планировщик остановлен по таймауту")
	}
	return nil
}
