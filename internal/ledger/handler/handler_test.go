package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bitfantasy/cargotrack/internal/ledger/service"
	"github.com/bitfantasy/cargotrack/internal/ledger/sse"
	"github.com/bitfantasy/cargotrack/internal/ledger/testutil"
	"github.com/gin-gonic/gin"
)

var (
	adminAddr        = testutil.Address(1)
	manufacturerAddr = testutil.Address(2)
	supplierAddr     = testutil.Address(3)
	carrierAddr      = testutil.Address(4)
)

const oneEther = "1000000000000000000"

var confirm = map[string]string{"X-Confirm": "true"}

type memStore struct {
	objects map[string][]byte
}

func (s *memStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.objects[key] = data
	return nil
}

func (s *memStore) PresignedURL(_ context.Context, key string, _ time.Duration, _ string) (string, error) {
	return "https://objects.test/" + key, nil
}

type ledgerTest struct {
	router *gin.Engine
	svc    *service.Services
	hub    *sse.Hub
	store  *memStore

	admin, manufacturer, supplier, carrier string
}

func setupLedgerTest(t *testing.T) *ledgerTest {
	t.Helper()
	db := testutil.SetupTestDB(t)
	rdb, _ := testutil.SetupRedis(t)

	cfg := service.DefaultConfig()
	cfg.AdminAddress = adminAddr
	ledger := service.NewLedger(db, cfg)
	store := &memStore{objects: make(map[string][]byte)}
	svc := service.NewServices(ledger, rdb, store, service.AuthConfig{
		Secret: testutil.JWTSecret,
		Issuer: "cargotrack",
	}, nil)

	hub := sse.NewHub(nil)
	ledger.AddSink(hub)
	t.Cleanup(hub.Close)

	router := testutil.SetupRouter()
	RegisterRoutes(router.Group("/api/v1"), NewHandlers(svc, hub), testutil.JWTSecret)

	return &ledgerTest{
		router:       router,
		svc:          svc,
		hub:          hub,
		store:        store,
		admin:        testutil.GenerateTestToken(adminAddr),
		manufacturer: testutil.GenerateTestToken(manufacturerAddr, "manufacturer"),
		supplier:     testutil.GenerateTestToken(supplierAddr, "supplier"),
		carrier:      testutil.GenerateTestToken(carrierAddr, "carrier"),
	}
}

func (lt *ledgerTest) do(t *testing.T, method, path string, body interface{}, token string, want int) map[string]interface{} {
	t.Helper()
	return lt.doWithHeaders(t, method, path, body, token, nil, want)
}

func (lt *ledgerTest) doWithHeaders(t *testing.T, method, path string, body interface{}, token string, headers map[string]string, want int) map[string]interface{} {
	t.Helper()
	w := testutil.DoRequestWithHeaders(lt.router, method, path, body, token, headers)
	if w.Code != want {
		t.Fatalf("%s %s: expected %d, got %d: %s", method, path, want, w.Code, w.Body.String())
	}
	return testutil.ParseResponse(w)
}

func (lt *ledgerTest) registerParticipants(t *testing.T) {
	t.Helper()
	lt.do(t, "POST", "/api/v1/manufacturers", map[string]interface{}{
		"address":          manufacturerAddr,
		"name":             "Acme Motors",
		"authorized_parts": []int{0, 1},
	}, lt.admin, http.StatusCreated)
	lt.do(t, "POST", "/api/v1/suppliers", map[string]interface{}{
		"address": supplierAddr,
		"name":    "Parts Co",
		"prices":  []string{oneEther, "2" + oneEther[1:], "0"},
	}, lt.admin, http.StatusCreated)
	lt.do(t, "POST", "/api/v1/carriers", map[string]interface{}{
		"address": carrierAddr,
		"name":    "Blue Sea Logistics",
	}, lt.admin, http.StatusCreated)
}

func (lt *ledgerTest) createOrder(t *testing.T, quantity int) uint64 {
	t.Helper()
	resp := lt.do(t, "POST", "/api/v1/orders", map[string]interface{}{
		"supplier":  supplierAddr,
		"part_type": 0,
		"quantity":  quantity,
	}, lt.manufacturer, http.StatusCreated)
	return uint64(resp["data"].(map[string]interface{})["id"].(float64))
}

func reason(resp map[string]interface{}) interface{} {
	data, _ := resp["data"].(map[string]interface{})
	return data["reason"]
}

func TestRegistryRoutes(t *testing.T) {
	lt := setupLedgerTest(t)
	lt.registerParticipants(t)

	resp := lt.do(t, "POST", "/api/v1/carriers", map[string]interface{}{
		"address": carrierAddr,
		"name":    "Twice",
	}, lt.admin, http.StatusConflict)
	if resp["code"].(float64) != 40901 {
		t.Errorf("Expected code 40901, got %v", resp["code"])
	}
	if reason(resp) != "AlreadyRegistered" {
		t.Errorf("Expected reason AlreadyRegistered, got %v", reason(resp))
	}

	resp = lt.do(t, "POST", "/api/v1/carriers", map[string]interface{}{
		"address": testutil.Address(9),
		"name":    "Not admin",
	}, lt.manufacturer, http.StatusForbidden)
	if reason(resp) != "Unauthorized" {
		t.Errorf("Expected reason Unauthorized, got %v", reason(resp))
	}

	resp = lt.do(t, "GET", "/api/v1/suppliers", nil, lt.manufacturer, http.StatusOK)
	data := resp["data"].(map[string]interface{})
	if data["count"].(float64) != 1 {
		t.Errorf("Expected 1 supplier, got %v", data["count"])
	}

	resp = lt.do(t, "GET", "/api/v1/suppliers/"+strings.ToLower(supplierAddr), nil, lt.manufacturer, http.StatusOK)
	prices := resp["data"].(map[string]interface{})["prices"].([]interface{})
	if prices[0] != oneEther {
		t.Errorf("Expected engine price %s, got %v", oneEther, prices[0])
	}

	resp = lt.do(t, "GET", "/api/v1/manufacturers/"+manufacturerAddr+"/parts/2", nil, lt.manufacturer, http.StatusOK)
	if resp["data"].(map[string]interface{})["authorized"] != false {
		t.Errorf("Expected BrakeAssembly not authorized, got %v", resp["data"])
	}

	newPrices := map[string]interface{}{
		"prices": []string{"5" + oneEther[1:], oneEther, oneEther},
	}
	resp = lt.do(t, "PUT", "/api/v1/suppliers/"+supplierAddr+"/prices", newPrices, lt.supplier, http.StatusForbidden)
	if reason(resp) != "Unauthorized" {
		t.Errorf("Expected supplier price update to be Unauthorized, got %v", reason(resp))
	}
	lt.do(t, "PUT", "/api/v1/suppliers/"+supplierAddr+"/prices", newPrices, lt.admin, http.StatusOK)
	resp = lt.do(t, "GET", "/api/v1/suppliers/"+supplierAddr, nil, lt.manufacturer, http.StatusOK)
	prices = resp["data"].(map[string]interface{})["prices"].([]interface{})
	if prices[0] != "5"+oneEther[1:] {
		t.Errorf("Expected revised engine price, got %v", prices[0])
	}

	resp = lt.do(t, "GET", "/api/v1/auth/me", nil, lt.supplier, http.StatusOK)
	roles := resp["data"].(map[string]interface{})["roles"].([]interface{})
	if len(roles) != 1 || roles[0] != "supplier" {
		t.Errorf("Expected roles [supplier], got %v", roles)
	}
}

func TestOrderLifecycleRoutes(t *testing.T) {
	lt := setupLedgerTest(t)
	lt.registerParticipants(t)

	id := lt.createOrder(t, 10)
	if id != 1 {
		t.Fatalf("Expected order id 1, got %d", id)
	}
	base := fmt.Sprintf("/api/v1/orders/%d", id)

	resp := lt.do(t, "GET", base, nil, lt.manufacturer, http.StatusOK)
	quote := resp["data"].(map[string]interface{})["payment_quote"].(map[string]interface{})
	if quote["total"] != "10500000000000000000" {
		t.Fatalf("Expected total 10.5 ether in wei, got %v", quote["total"])
	}

	// 未确认的资金操作被拦截
	lt.do(t, "POST", "/api/v1/payments", map[string]interface{}{
		"order_id": id,
		"value":    "10500000000000000000",
	}, lt.manufacturer, http.StatusPreconditionRequired)

	resp = lt.doWithHeaders(t, "POST", "/api/v1/payments", map[string]interface{}{
		"order_id": id,
		"value":    "10000000000000000000",
	}, lt.manufacturer, confirm, http.StatusBadRequest)
	if reason(resp) != "IncorrectPaymentAmount" {
		t.Errorf("Expected IncorrectPaymentAmount, got %v", reason(resp))
	}

	lt.doWithHeaders(t, "POST", "/api/v1/payments", map[string]interface{}{
		"order_id": id,
		"value":    "10500000000000000000",
	}, lt.manufacturer, confirm, http.StatusCreated)

	lt.do(t, "POST", base+"/accept", nil, lt.manufacturer, http.StatusForbidden)
	lt.do(t, "POST", base+"/accept", nil, lt.supplier, http.StatusOK)
	resp = lt.do(t, "POST", base+"/accept", nil, lt.supplier, http.StatusConflict)
	if reason(resp) != "InvalidState" {
		t.Errorf("Expected InvalidState, got %v", reason(resp))
	}

	resp = lt.do(t, "POST", "/api/v1/shipments", map[string]interface{}{
		"order_id":  id,
		"carrier":   carrierAddr,
		"part_type": 0,
	}, lt.manufacturer, http.StatusConflict)
	if reason(resp) != "Order not completed" {
		t.Errorf("Expected 'Order not completed', got %v", reason(resp))
	}

	lt.do(t, "POST", base+"/quality-check", map[string]interface{}{"result": 1}, lt.supplier, http.StatusOK)

	resp = lt.do(t, "POST", base+"/dispatch", map[string]interface{}{
		"carrier":          carrierAddr,
		"transport_mode":   0,
		"initial_location": "Shanghai",
		"final_location":   "Hamburg",
	}, lt.manufacturer, http.StatusOK)
	stepsOut := resp["data"].(map[string]interface{})["steps"].([]interface{})
	if len(stepsOut) != 2 || stepsOut[0].(map[string]interface{})["result"] != "skipped" {
		t.Errorf("Expected initiateShipment skipped after QC, got %v", stepsOut)
	}

	lt.do(t, "PUT", base+"/milestones/3", map[string]interface{}{"status": 1, "note": "on board"}, lt.carrier, http.StatusOK)
	lt.do(t, "PUT", base+"/milestones/3", map[string]interface{}{"status": 1}, lt.admin, http.StatusForbidden)
	resp = lt.do(t, "GET", base+"/milestones/3", nil, lt.manufacturer, http.StatusOK)
	if resp["data"].(map[string]interface{})["note"] != "on board" {
		t.Errorf("Expected milestone note, got %v", resp["data"])
	}

	lt.doWithHeaders(t, "POST", fmt.Sprintf("/api/v1/payments/%d/release", id), nil, lt.supplier, confirm, http.StatusConflict)

	lt.do(t, "POST", fmt.Sprintf("/api/v1/shipments/%d/clear-customs", id), map[string]interface{}{
		"target_status": 3,
		"location":      "Hamburg",
	}, lt.carrier, http.StatusOK)

	resp = lt.doWithHeaders(t, "POST", fmt.Sprintf("/api/v1/payments/%d/release", id), nil, lt.supplier, confirm, http.StatusOK)
	if resp["data"].(map[string]interface{})["released"] != true {
		t.Errorf("Expected payment released, got %v", resp["data"])
	}

	resp = lt.do(t, "GET", "/api/v1/accounts/"+carrierAddr+"/transfers", nil, lt.carrier, http.StatusOK)
	items := resp["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 1 || items[0].(map[string]interface{})["amount"] != "500000000000000000" {
		t.Errorf("Expected one 0.5 ether carrier fee transfer, got %v", items)
	}

	resp = lt.do(t, "GET", base+"/penalty", nil, lt.manufacturer, http.StatusOK)
	if resp["data"].(map[string]interface{})["penalty"] != "0" {
		t.Errorf("Expected zero penalty, got %v", resp["data"])
	}

	resp = lt.do(t, "GET", "/api/v1/events?order_id=1&page_size=100", nil, lt.manufacturer, http.StatusOK)
	events := resp["data"].(map[string]interface{})["items"].([]interface{})
	last := events[len(events)-1].(map[string]interface{})
	if last["name"] != "PaymentReleased" {
		t.Errorf("Expected last order event PaymentReleased, got %v", last["name"])
	}

	resp = lt.do(t, "GET", "/api/v1/dashboard/overview", nil, lt.admin, http.StatusOK)
	if resp["data"].(map[string]interface{})["payments_released"].(float64) != 1 {
		t.Errorf("Expected 1 released payment, got %v", resp["data"])
	}
}

func TestOrderRoutes_BadInput(t *testing.T) {
	lt := setupLedgerTest(t)
	lt.registerParticipants(t)

	lt.do(t, "GET", "/api/v1/orders/abc", nil, lt.manufacturer, http.StatusBadRequest)
	lt.do(t, "GET", "/api/v1/orders/7", nil, lt.manufacturer, http.StatusNotFound)
	lt.do(t, "POST", "/api/v1/orders", map[string]interface{}{"part_type": 0}, lt.manufacturer, http.StatusBadRequest)

	resp := lt.do(t, "POST", "/api/v1/orders", map[string]interface{}{
		"supplier":  supplierAddr,
		"part_type": 0,
		"quantity":  0,
	}, lt.manufacturer, http.StatusBadRequest)
	if reason(resp) != "InvalidQuantity" {
		t.Errorf("Expected InvalidQuantity, got %v", reason(resp))
	}

	lt.do(t, "GET", "/api/v1/orders", nil, "", http.StatusUnauthorized)
}

func TestOrderListAndExport(t *testing.T) {
	lt := setupLedgerTest(t)
	lt.registerParticipants(t)
	lt.createOrder(t, 1)
	lt.createOrder(t, 2)

	resp := lt.do(t, "GET", "/api/v1/orders?page_size=1&supplier="+supplierAddr, nil, lt.manufacturer, http.StatusOK)
	pagination := resp["data"].(map[string]interface{})["pagination"].(map[string]interface{})
	if pagination["total"].(float64) != 2 || pagination["total_pages"].(float64) != 2 {
		t.Errorf("Unexpected pagination %v", pagination)
	}

	lt.do(t, "POST", "/api/v1/orders/2/accept", nil, lt.supplier, http.StatusOK)
	for query, want := range map[string]float64{"Accepted": 1, "pending": 1, "0": 1, "Rejected": 0} {
		resp = lt.do(t, "GET", "/api/v1/orders?status="+query, nil, lt.manufacturer, http.StatusOK)
		pagination = resp["data"].(map[string]interface{})["pagination"].(map[string]interface{})
		if pagination["total"].(float64) != want {
			t.Errorf("status=%s: expected %v orders, got %v", query, want, pagination["total"])
		}
	}
	lt.do(t, "GET", "/api/v1/orders?status=Shipped", nil, lt.manufacturer, http.StatusBadRequest)
	lt.do(t, "GET", "/api/v1/orders/export?status=7", nil, lt.manufacturer, http.StatusBadRequest)

	resp = lt.do(t, "GET", "/api/v1/orders/count", nil, lt.manufacturer, http.StatusOK)
	if resp["data"].(map[string]interface{})["count"].(float64) != 2 {
		t.Errorf("Expected count 2, got %v", resp["data"])
	}

	w := testutil.DoRequest(lt.router, "GET", "/api/v1/orders/export", nil, lt.manufacturer)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("Expected xlsx content type, got %s", ct)
	}
	if !strings.HasPrefix(w.Body.String(), "PK") {
		t.Error("Expected a zip container")
	}
}

func TestShipmentDocumentRoutes(t *testing.T) {
	lt := setupLedgerTest(t)
	lt.registerParticipants(t)
	id := lt.createOrder(t, 1)
	base := fmt.Sprintf("/api/v1/orders/%d", id)
	lt.do(t, "POST", base+"/accept", nil, lt.supplier, http.StatusOK)
	lt.do(t, "POST", base+"/quality-check", map[string]interface{}{"result": 1}, lt.supplier, http.StatusOK)
	lt.do(t, "POST", "/api/v1/shipments", map[string]interface{}{
		"order_id":       id,
		"carrier":        carrierAddr,
		"part_type":      0,
		"transport_mode": 1,
	}, lt.supplier, http.StatusCreated)

	resp := lt.do(t, "GET", "/api/v1/shipments/count", nil, lt.carrier, http.StatusOK)
	if resp["data"].(map[string]interface{})["count"].(float64) != 1 {
		t.Errorf("Expected shipment count 1, got %v", resp["data"])
	}
	for query, want := range map[string]float64{"Created": 1, "intransit": 0, "3": 0} {
		resp = lt.do(t, "GET", "/api/v1/shipments?status="+query, nil, lt.carrier, http.StatusOK)
		pagination := resp["data"].(map[string]interface{})["pagination"].(map[string]interface{})
		if pagination["total"].(float64) != want {
			t.Errorf("status=%s: expected %v shipments, got %v", query, want, pagination["total"])
		}
	}
	lt.do(t, "GET", "/api/v1/shipments?status=Lost", nil, lt.carrier, http.StatusBadRequest)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "bol.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	io.Copy(part, strings.NewReader("bill of lading"))
	writer.WriteField("kind", "bill_of_lading")
	writer.Close()

	req, _ := http.NewRequest("POST", fmt.Sprintf("/api/v1/shipments/%d/documents", id), body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+lt.carrier)
	w := httptest.NewRecorder()
	lt.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	doc := testutil.Data(t, w)
	if len(lt.store.objects) != 1 {
		t.Errorf("Expected 1 stored object, got %d", len(lt.store.objects))
	}

	resp = lt.do(t, "GET", fmt.Sprintf("/api/v1/shipments/%d/documents", id), nil, lt.manufacturer, http.StatusOK)
	docs := resp["data"].(map[string]interface{})["items"].([]interface{})
	if len(docs) != 1 {
		t.Fatalf("Expected 1 document, got %d", len(docs))
	}

	resp = lt.do(t, "GET", "/api/v1/documents/"+doc["id"].(string)+"/url", nil, lt.supplier, http.StatusOK)
	if !strings.HasPrefix(resp["data"].(map[string]interface{})["url"].(string), "https://objects.test/shipments/") {
		t.Errorf("Unexpected url %v", resp["data"])
	}

	lt.do(t, "GET", fmt.Sprintf("/api/v1/shipments/%d/documents", id), nil, testutil.GenerateTestToken(testutil.Address(77)), http.StatusForbidden)
}

func TestAuthRoutes(t *testing.T) {
	lt := setupLedgerTest(t)

	lt.do(t, "GET", "/api/v1/auth/nonce", nil, "", http.StatusBadRequest)
	lt.do(t, "GET", "/api/v1/auth/nonce?address=0x12", nil, "", http.StatusBadRequest)

	resp := lt.do(t, "GET", "/api/v1/auth/nonce?address="+strings.ToLower(carrierAddr), nil, "", http.StatusOK)
	data := resp["data"].(map[string]interface{})
	if data["address"] != carrierAddr {
		t.Errorf("Expected checksummed address, got %v", data["address"])
	}

	resp = lt.do(t, "POST", "/api/v1/auth/login", map[string]interface{}{
		"address":   carrierAddr,
		"signature": "0x" + strings.Repeat("00", 65),
	}, "", http.StatusForbidden)
	if reason(resp) != "InvalidSignature" {
		t.Errorf("Expected InvalidSignature, got %v", reason(resp))
	}
}

func TestEventStream(t *testing.T) {
	lt := setupLedgerTest(t)
	server := httptest.NewServer(lt.router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", server.URL+"/api/v1/events/stream?token="+lt.admin, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Expected text/event-stream, got %s", ct)
	}

	// 读到 connected 事件后客户端已注册
	buf := make([]byte, 4096)
	var received strings.Builder
	for !strings.Contains(received.String(), "event: connected") {
		n, err := resp.Body.Read(buf)
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		received.Write(buf[:n])
	}

	lt.do(t, "POST", "/api/v1/carriers", map[string]interface{}{
		"address": carrierAddr,
		"name":    "Blue Sea Logistics",
	}, lt.admin, http.StatusCreated)

	for !strings.Contains(received.String(), "event: CarrierRegistered") {
		n, err := resp.Body.Read(buf)
		if err != nil {
			t.Fatalf("read stream: %v (got %q)", err, received.String())
		}
		received.Write(buf[:n])
	}
	if !strings.Contains(received.String(), "id: 1\n") {
		t.Errorf("Expected event id 1, got %q", received.String())
	}
}
