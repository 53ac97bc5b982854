package rest_test

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRESTContract(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "REST Contract Suite")
}

// The document served at /openapi.yml is the public contract. These specs
// keep it loadable and in step with the routes the router actually mounts.
var _ = Describe("OpenAPI contract", func() {
	var doc *openapi3.T

	BeforeEach(func() {
		loader := openapi3.NewLoader()
		var err error
		doc, err = loader.LoadFromFile(filepath.Join("..", "..", "..", "api", "openapi.yml"))
		Expect(err).NotTo(HaveOccurred())

		Expect(doc.Validate(context.Background())).To(Succeed())
	})

	It("documents every routed operation", func() {
		type operation struct {
			path   string
			method string
		}

		operations := []operation{
			{"/health", http.MethodGet},
			{"/ping", http.MethodGet},
			{"/auth/login", http.MethodPost},
			{"/auth/register", http.MethodPost},
			{"/auth/refresh", http.MethodPost},
			{"/auth/logout", http.MethodPost},
			{"/auth/password", http.MethodPost},
			{"/me", http.MethodGet},
			{"/patients", http.MethodGet},
			{"/patients", http.MethodPost},
			{"/patients/{id}", http.MethodGet},
			{"/patients/{id}", http.MethodPatch},
			{"/patients/{id}", http.MethodDelete},
			{"/patients/{id}/restore", http.MethodPost},
			{"/patients/{id}/sessions", http.MethodGet},
			{"/sessions", http.MethodPost},
			{"/sessions/recent", http.MethodGet},
			{"/sessions/{id}", http.MethodGet},
			{"/sessions/{id}", http.MethodPatch},
			{"/sessions/{id}", http.MethodDelete},
			{"/sessions/{id}/toggle", http.MethodPost},
			{"/dashboard", http.MethodGet},
			{"/dashboard/stats", http.MethodGet},
			{"/users", http.MethodGet},
			{"/users/{id}", http.MethodPatch},
			{"/audit/recent", http.MethodGet},
			{"/audit/logins", http.MethodGet},
			{"/audit/security", http.MethodGet},
			{"/audit/users/{user_id}", http.MethodGet},
			{"/audit/records/{target_type}/{target_id}", http.MethodGet},
		}

		for _, op := range operations {
			item := doc.Paths.Find(op.path)
			Expect(item).NotTo(BeNil(), "path %s is missing from the contract", op.path)
			Expect(item.GetOperation(op.method)).NotTo(BeNil(),
				"operation %s %s is missing from the contract", op.method, op.path)
		}
	})

	It("requires bearer auth on protected operations", func() {
		protected := []string{
			"/me",
			"/patients",
			"/sessions/recent",
			"/dashboard",
			"/users",
			"/audit/recent",
		}

		for _, path := range protected {
			item := doc.Paths.Find(path)
			Expect(item).NotTo(BeNil(), "path %s is missing from the contract", path)
			Expect(item.Get).NotTo(BeNil())
			Expect(item.Get.Security).NotTo(BeNil(), "GET %s must declare bearer auth", path)
		}
	})

	It("keeps login and refresh public", func() {
		for _, path := range []string{"/auth/login", "/auth/refresh"} {
			item := doc.Paths.Find(path)
			Expect(item).NotTo(BeNil())
			Expect(item.Post).NotTo(BeNil())
			Expect(item.Post.Security).To(BeNil(), "POST %s must not require auth", path)
		}
	})
})
