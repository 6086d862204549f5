package redis

import (
	"fmt"
	"reflect"
)

// structToArgs flattens a struct into field-value pairs for HSET,
// using the redis tag as the field name.
func (r repo) structToArgs(value interface{}) []interface{} {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	t := v.Type()
	args := make([]interface{}, 0, v.NumField()*2)

	for i := 0; i < v.NumField(); i++ {
		tag := t.Field(i).Tag.Get("redis")
		if tag == "" {
			tag = t.Field(i).Name
		}

		args = append(args, tag, fmt.Sprint(v.Field(i).Interface()))
	}

	return args
}
