package api

const (
	RouteLogin          = "/login"
	RouteUnauthorized   = "/unauthorized"
	RoutePaymentSuccess = "/payment/success"
	RoutePaymentFailure = "/payment/failure"
)

// Navigator moves the user to another route of the host application,
// state is handed over to the destination.
type Navigator interface {
	Navigate(route string, state interface{})
}

type NavigatorFunc func(route string, state interface{})

func (f NavigatorFunc) Navigate(route string, state interface{}) { f(route, state) }
