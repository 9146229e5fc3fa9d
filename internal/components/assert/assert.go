package assert

// NotNil panics when a required collaborator was not provided.
func NotNil(value any) {
	if value == nil {
		panic("expected value to be not nil")
	}
}

func NotEmptyStr(str string) {
	if str == "" {
		panic("expected string to be non-empty")
	}
}

// InRange panics when n falls outside [min, max].
func InRange(n, min, max int) {
	if n < min || n > max {
		panic("expected value to be within range")
	}
}
