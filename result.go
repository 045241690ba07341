package authcenter

// Result is the envelope every request is answered with.
type Result struct {
	RetCode     int            `json:"retCode" cbor:"retCode"`
	Description string         `json:"description" cbor:"description"`
	Data        map[string]any `json:"data" cbor:"data"`
}

// OK reports whether r is a success envelope.
func (r Result) OK() bool {
	return r.RetCode == CodeSuccess
}

func success(data map[string]any) Result {
	if data == nil {
		data = map[string]any{}
	}
	return Result{
		RetCode:     CodeSuccess,
		Description: Describe(CodeSuccess),
		Data:        data,
	}
}

func failure(code int, description string) Result {
	if description == "" {
		description = Describe(code)
	}
	return Result{
		RetCode:     code,
		Description: description,
		Data:        map[string]any{},
	}
}
