package worker

import "time"

// RetryPolicy описывает экспоненциальную выдержку между попытками доставки.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// withDefaults заполняет нулевые поля рабочими значениями.
func (r RetryPolicy) withDefaults() RetryPolicy {
	if r.MaxRetries == 0 {
		r.MaxRetries = 5
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = 2 * time.Second
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = time.Minute
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}
	return r
}

// NextDelay возвращает выдержку перед попыткой attempt (нумерация с 1).
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	r = r.withDefaults()
	delay := float64(r.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= r.BackoffFactor
		if time.Duration(delay) >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	d := time.Duration(delay)
	if d > r.MaxDelay {
		d = r.MaxDelay
	}
	return d
}
