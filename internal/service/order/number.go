package order

import (
	"fmt"
	"sync/atomic"
	"time"
)

// NumberGenerator выдаёт уникальные публичные номера заказов. Номер строится
// из метки времени и монотонного счётчика, поэтому конкурентные оформления
// не могут получить одинаковый номер. Генерация вызывается явно до записи в
// хранилище — никаких скрытых hook'ов на сохранении.
type NumberGenerator struct {
	seq atomic.Int64
}

// NewNumberGenerator создаёт генератор с нулевым счётчиком.
func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{}
}

// Next возвращает следующий номер вида ORD-<unix-millis>-<seq>.
func (g *NumberGenerator) Next() string {
	return fmt.Sprintf("ORD-%d-%d", time.Now().UnixMilli(), g.seq.Add(1))
}
