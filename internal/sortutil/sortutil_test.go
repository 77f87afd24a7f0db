package sortutil

import (
	"reflect"
	"testing"
)

func TestKeys(t *testing.T) {
	got := Keys(map[string]int{"b": 1, "a": 2, "c": 3})
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("got %v", got)
	}
}
