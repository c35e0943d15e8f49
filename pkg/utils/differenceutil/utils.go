package differenceutil

import (
	"reflect"
)

type getKeyFunc func(value interface{}) string

// DifferenceAndIntersectionSameTypeObjects splits two slices of the same
// element type into keys only in src, keys in both, and keys only in des.
// O(len(src) + len(des)).
func DifferenceAndIntersectionSameTypeObjects(src, des interface{}, get getKeyFunc) (onlySrc, intersection, onlyDes []string) {
	s := reflect.ValueOf(src)
	d := reflect.ValueOf(des)
	m := make(map[string]uint8)

	for i := 0; i < s.Len(); i++ {
		m[get(s.Index(i).Interface())] |= 1 << 0
	}
	for i := 0; i < d.Len(); i++ {
		m[get(d.Index(i).Interface())] |= 1 << 1
	}

	for k, v := range m {
		a := v&(1<<0) != 0
		b := v&(1<<1) != 0
		switch {
		case a && b:
			intersection = append(intersection, k)
		case a && !b:
			onlySrc = append(onlySrc, k)
		case !a && b:
			onlyDes = append(onlyDes, k)
		}
	}

	return
}
