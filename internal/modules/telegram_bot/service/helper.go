package service

import (
	"fmt"
	"strconv"
)

func f2(v float64) string { // для красивого вывода
	return fmt.Sprintf("%.2f", v)
}

func mustInt(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
