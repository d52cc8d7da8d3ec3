package clause

import "strconv"

func int64ToString(v int64) string     { return strconv.FormatInt(v, 10) }
func float64ToString(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
