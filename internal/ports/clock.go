package ports

import "time"

// Clock abstrae el reloj para que los tests controlen el tiempo.
type Clock interface {
	Now() time.Time
}

// SystemClock es el reloj real.
type SystemClock struct{}

// Now devuelve la hora actual en UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
