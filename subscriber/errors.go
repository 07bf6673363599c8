package subscriber

import "fmt"

func errRequired(what string) error {
	return fmt.Errorf("subscriber: %s is required", what)
}

func errUnsupportedDriver(name string) error {
	return fmt.Errorf("subscriber: unsupported driver: %s", name)
}
