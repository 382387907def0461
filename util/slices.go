package util

import "github.com/miekg/dns"

// ConcatSlices returns a new slice with contents of all the inputs concatenated.
func ConcatSlices[T any](slices ...[]T) []T {
	totalLen := 0

	for _, slice := range slices {
		totalLen += len(slice)
	}

	res := make([]T, 0, totalLen)

	for _, slice := range slices {
		res = append(res, slice...)
	}

	return res
}

// ExtractRecords returns the records of type T from all given sections, keeping their order
func ExtractRecords[T dns.RR](sections ...[]dns.RR) []T {
	var res []T

	for _, section := range sections {
		for _, rr := range section {
			if t, ok := rr.(T); ok {
				res = append(res, t)
			}
		}
	}

	return res
}

// FilterRecords returns the records for which keep returns true
func FilterRecords(rrs []dns.RR, keep func(dns.RR) bool) []dns.RR {
	if rrs == nil {
		return nil
	}

	res := make([]dns.RR, 0, len(rrs))

	for _, rr := range rrs {
		if keep(rr) {
			res = append(res, rr)
		}
	}

	return res
}
