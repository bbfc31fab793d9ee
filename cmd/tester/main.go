// End-to-end scenario driver. Pushes synthetic carts through checkout and
// steers each resulting order through the choreography via the public APIs.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

type AddItemRequest struct {
	RestaurantId string `json:"restaurant_id"`
	MenuItemId   string `json:"menu_item_id"`
	Name         string `json:"name"`
	PriceCents   int64  `json:"price_cents"`
	Currency     string `json:"currency"`
	Quantity     int64  `json:"quantity"`
}

type CheckoutRequest struct {
	DeliveryAddress string `json:"delivery_address"`
}

type AcceptOrderRequest struct {
	DriverId   string `json:"driver_id"`
	EtaMinutes int64  `json:"eta_minutes"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

type RejectOrderRequest struct {
	Reason string `json:"reason"`
}

type Order struct {
	OrderId    string `json:"order_id"`
	CustomerId string `json:"customer_id"`
	Status     string `json:"status"`
}

// APIResponse mirrors the services' utils.Response shape
type APIResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type scenario string

const (
	ScHappy          scenario = "happy"
	ScCustomerCancel scenario = "customer_cancel"
	ScRestoReject    scenario = "restaurant_reject"
	ScPayFail        scenario = "payment_failure_random"
)

type endpoints struct {
	Cart       string
	Orders     string
	Restaurant string
}

func main() {
	rand.New(rand.NewSource(time.Now().UnixNano()))

	cartBase := flag.String("cart", envOr("CART_BASE", "http://localhost:8080"), "Cart service base URL")
	orderBase := flag.String("orders", envOr("ORDERS_BASE", "http://localhost:8081"), "Order service base URL")
	restoBase := flag.String("restaurant", envOr("RESTAURANT_BASE", "http://localhost:8082"), "Restaurant service base URL")
	total := flag.Int("total", 10, "total number of synthetic orders to send in burst phase")
	conc := flag.Int("concurrency", 5, "concurrency for burst phase")
	pollTimeout := flag.Duration("timeout", 90*time.Second, "max time to wait per order phase")
	jitterMax := flag.Duration("jitter", 800*time.Millisecond, "max random jitter between requests in spike test")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}
	eps := endpoints{
		Cart:       strings.TrimRight(*cartBase, "/"),
		Orders:     strings.TrimRight(*orderBase, "/"),
		Restaurant: strings.TrimRight(*restoBase, "/"),
	}

	log.Printf("Cart: %s | Orders: %s | Restaurant: %s", eps.Cart, eps.Orders, eps.Restaurant)

	// 1) Deterministic scenarios
	runScenario(client, eps, ScHappy, *pollTimeout)
	runScenario(client, eps, ScCustomerCancel, *pollTimeout)
	runScenario(client, eps, ScRestoReject, *pollTimeout)
	// Payment failure is random; run a few to likely hit the failure path
	for i := 0; i < 5; i++ {
		runScenario(client, eps, ScPayFail, *pollTimeout)
	}

	// 2) Burst & spikes
	log.Printf("Starting burst test: total=%d concurrency=%d", *total, *conc)
	burst(client, eps, *total, *conc, *pollTimeout, *jitterMax)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func runScenario(client *http.Client, eps endpoints, sc scenario, timeout time.Duration) {
	customerId := "cust-" + randID()

	if err := fillCart(client, eps, customerId); err != nil {
		log.Printf("[%s] fill cart failed: %v", sc, err)
		return
	}
	if err := checkout(client, eps, customerId); err != nil {
		log.Printf("[%s] checkout failed: %v", sc, err)
		return
	}

	order, err := waitForOrder(client, eps, customerId, timeout)
	if err != nil {
		log.Printf("[%s] no order appeared for %s: %v", sc, customerId, err)
		return
	}

	switch sc {
	case ScHappy:
		driveHappyPath(client, eps, sc, order.OrderId, timeout)
	case ScCustomerCancel:
		if err := post(client, eps.Orders+"/api/v1/orders/"+order.OrderId+"/cancel",
			CancelOrderRequest{Reason: "Changed my mind"}); err != nil {
			log.Printf("[%s] cancel failed: %v", sc, err)
		}
	case ScRestoReject:
		if _, err := waitForStatus(client, eps, order.OrderId, timeout, "payment_succeeded", "cancelled"); err != nil {
			log.Printf("[%s] wait for payment failed: %v", sc, err)
			return
		}
		if err := post(client, eps.Restaurant+"/api/v1/restaurant/orders/"+order.OrderId+"/reject",
			RejectOrderRequest{Reason: "Kitchen closed"}); err != nil {
			log.Printf("[%s] reject failed: %v", sc, err)
		}
	case ScPayFail:
		// nothing to drive; the mock gateway decides
	}

	st, err := waitForStatus(client, eps, order.OrderId, timeout, "delivered", "cancelled")
	if err != nil {
		log.Printf("[%s] wait failed for %s: %v", sc, order.OrderId, err)
		return
	}
	log.Printf("[%s] result: order_id=%s status=%s", sc, order.OrderId, st)
}

// driveHappyPath plays the restaurant and the driver so the order can reach
// delivered.
func driveHappyPath(client *http.Client, eps endpoints, sc scenario, orderId string, timeout time.Duration) {
	if _, err := waitForStatus(client, eps, orderId, timeout, "payment_succeeded", "cancelled"); err != nil {
		log.Printf("[%s] wait for payment failed: %v", sc, err)
		return
	}
	if err := post(client, eps.Restaurant+"/api/v1/restaurant/orders/"+orderId+"/confirm", nil); err != nil {
		log.Printf("[%s] confirm failed: %v", sc, err)
		return
	}
	if _, err := waitForStatus(client, eps, orderId, timeout, "ready_for_pickup", "cancelled"); err != nil {
		log.Printf("[%s] wait for kitchen failed: %v", sc, err)
		return
	}
	if err := post(client, eps.Orders+"/api/v1/orders/"+orderId+"/accept",
		AcceptOrderRequest{DriverId: "drv-" + randID(), EtaMinutes: 25}); err != nil {
		log.Printf("[%s] driver accept failed: %v", sc, err)
		return
	}
	if err := post(client, eps.Orders+"/api/v1/orders/"+orderId+"/status",
		UpdateStatusRequest{Status: "in_transit"}); err != nil {
		log.Printf("[%s] in_transit failed: %v", sc, err)
		return
	}
	if err := post(client, eps.Orders+"/api/v1/orders/"+orderId+"/status",
		UpdateStatusRequest{Status: "delivered"}); err != nil {
		log.Printf("[%s] delivered failed: %v", sc, err)
	}
}

func burst(client *http.Client, eps endpoints, total, conc int, timeout, jitterMax time.Duration) {
	var wg sync.WaitGroup
	jobs := make(chan int)
	scenarios := []scenario{ScHappy, ScCustomerCancel, ScRestoReject, ScPayFail}

	worker := func() {
		defer wg.Done()
		for range jobs {
			sc := scenarios[rand.Intn(len(scenarios))]
			time.Sleep(time.Duration(rand.Int63n(int64(jitterMax))))
			runScenario(client, eps, sc, timeout)
		}
	}

	for i := 0; i < conc; i++ {
		wg.Add(1)
		go worker()
	}
	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

func fillCart(client *http.Client, eps endpoints, customerId string) error {
	items := []AddItemRequest{
		{RestaurantId: "resto-1", MenuItemId: "burger", Name: "Burger", PriceCents: 899, Currency: "USD", Quantity: 1},
		{RestaurantId: "resto-1", MenuItemId: "fries", Name: "Fries", PriceCents: 349, Currency: "USD", Quantity: 2},
	}
	for _, item := range items {
		if err := post(client, eps.Cart+"/api/v1/carts/"+customerId+"/items", item); err != nil {
			return err
		}
	}
	return nil
}

func checkout(client *http.Client, eps endpoints, customerId string) error {
	return post(client, eps.Cart+"/api/v1/carts/"+customerId+"/checkout",
		CheckoutRequest{DeliveryAddress: "Main street 1"})
}

// waitForOrder polls the customer's order list until the checkout has become
// an order.
func waitForOrder(client *http.Client, eps endpoints, customerId string, timeout time.Duration) (Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	url := eps.Orders + "/api/v1/orders?customer_id=" + customerId
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return Order{}, fmt.Errorf("timeout waiting for order of %s", customerId)
		case <-ticker.C:
			var orders []Order
			if err := get(ctx, client, url, &orders); err != nil {
				continue
			}
			if len(orders) > 0 {
				return orders[0], nil
			}
		}
	}
}

func waitForStatus(client *http.Client, eps endpoints, orderId string, timeout time.Duration, want ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	url := eps.Orders + "/api/v1/orders/" + orderId
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("timeout waiting for order %s", orderId)
		case <-ticker.C:
			var order Order
			if err := get(ctx, client, url, &order); err != nil {
				continue
			}
			for _, w := range want {
				if order.Status == w {
					return order.Status, nil
				}
			}
		}
	}
}

func post(client *http.Client, url string, body any) error {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, _ := http.NewRequest("POST", url, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	var api APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return err
	}
	if !api.Success {
		return fmt.Errorf("api returned success=false: %s", api.Message)
	}
	return nil
}

func get(ctx context.Context, client *http.Client, url string, out any) error {
	req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	var api APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return err
	}
	if !api.Success {
		return fmt.Errorf("api returned success=false: %s", api.Message)
	}
	return json.Unmarshal(api.Data, out)
}

func randID() string { return fmt.Sprintf("%04x", rand.Intn(65536)) }
