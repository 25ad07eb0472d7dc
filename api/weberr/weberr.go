// Package weberr decorates errors with the data needed to report them:
// an HTTP response for the stand-in backend and log fields for both the
// backend and the API client.
package weberr

// Opt decorates an error.
type Opt func(error) error

// Wrap applies opts to err in order. A nil err stays nil so results can
// be wrapped without checking them first.
func Wrap(err error, opts ...Opt) error {
	if err == nil {
		return nil
	}
	for _, opt := range opts {
		err = opt(err)
	}
	return err
}

// WithResponse sets the body and status written for err. The outermost
// response wins.
func WithResponse(body interface{}, status int) Opt {
	return func(err error) error {
		return &responseError{error: err, body: body, status: status}
	}
}

// WithFields adds log fields. Fields from every layer are merged, outer
// layers overriding inner ones.
func WithFields(fields map[string]interface{}) Opt {
	return func(err error) error {
		return &fieldsError{error: err, fields: fields}
	}
}
