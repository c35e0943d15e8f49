package runtime

import (
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"k8s.io/klog/v2"
)

type lessObjectFunc func(o1, o2 Object) bool

type objectSorter struct {
	objs      []Object
	lessFuncs []lessObjectFunc
}

func ByObject(less ...lessObjectFunc) *objectSorter {
	return &objectSorter{
		lessFuncs: less,
	}
}

func (os *objectSorter) Sort(objs []Object) {
	os.objs = objs
	sort.Sort(os)
}

func (os *objectSorter) Len() int {
	return len(os.objs)
}

func (os *objectSorter) Swap(i, j int) {
	os.objs[i], os.objs[j] = os.objs[j], os.objs[i]
}

func (os *objectSorter) Less(i, j int) bool {
	return os.less(os.objs[i], os.objs[j])
}

func (os *objectSorter) less(p, q Object) bool {
	var k int
	for k = 0; k < len(os.lessFuncs)-1; k++ {
		less := os.lessFuncs[k]
		switch {
		case less(p, q):
			return true
		case less(q, p):
			return false
		}
	}
	return os.lessFuncs[k](p, q)
}

var lessName = func(o1, o2 Object) bool {
	return strings.Compare(o1.GetName(), o2.GetName()) < 0
}

var lessModTime = func(o1, o2 Object) bool {
	return o1.GetModTime().Before(o2.GetModTime())
}

// GroupFilter narrows and orders a listing of poll groups. The filter value
// arrives as loose JSON from the query string and is decoded structurally.
type GroupFilter struct {
	Name interface{} `json:"name,omitempty"`
}

type fuzzyName struct {
	Like string `mapstructure:"like"`
}

// Match reports whether obj passes the name clause. Name may be a plain
// string (exact) or {"like": "..."} for substring match.
func (f *GroupFilter) Match(obj Object) bool {
	switch f.Name.(type) {
	case nil:
		return true
	case string:
		return obj.GetName() == f.Name.(string)
	default:
		var fn fuzzyName
		if err := mapstructure.Decode(f.Name, &fn); err != nil {
			klog.V(3).InfoS("Failed to decode name filter", "err", err)
			return false
		}
		return strings.Contains(obj.GetName(), fn.Like)
	}
}

// Apply filters and sorts objs by name then modification time.
func (f *GroupFilter) Apply(objs []Object) []Object {
	ret := make([]Object, 0, len(objs))
	for _, obj := range objs {
		if f.Match(obj) {
			ret = append(ret, obj)
		}
	}
	ByObject(lessName, lessModTime).Sort(ret)
	return ret
}
