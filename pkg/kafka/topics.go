package kafka

// One topic per producing context. Consumers bind a durable group per
// (context, topic set); the message key is the order id.
const (
	TopicCart            string = "cart.events"
	TopicOrder           string = "order.events"
	TopicPayment         string = "payment.events"
	TopicRestaurant      string = "restaurant.events"
	TopicDeadLetterQueue string = "dlq.events"
)
