// formatação de valores numéricos em headers, sem puxar fmt.

package ratelimit

import (
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

func formatFloat(v float64) string {
	// sem notação científica para valores comuns
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// retryAfterSeconds arredonda para cima: o cliente não deve voltar antes da vaga abrir.
func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	s := int(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	return s
}
