package sqlstore_test

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/goliatone/go-formwizard/pkg/store"
	"github.com/goliatone/go-formwizard/pkg/store/sqlstore"
)

var _ = ginkgo.Describe("SQL document store", func() {
	var (
		s   *sqlstore.Store
		ctx context.Context
	)

	ginkgo.BeforeEach(func() {
		var err error
		dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
		s, err = sqlstore.Open(sqlstore.DriverSQLite, dsn)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		ctx = context.Background()
	})

	ginkgo.AfterEach(func() {
		gomega.Expect(s.Close()).To(gomega.Succeed())
	})

	ginkgo.Context("Create and Get", func() {
		ginkgo.It("round trips a nested payload", func() {
			id, err := s.Create(ctx, "intakes", map[string]any{
				"kind":          "client",
				"householdSize": 3.0,
				"applicant":     map[string]any{"phone": "555-0100"},
				"allergies":     []string{"dairy", "soy"},
			})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(id).NotTo(gomega.BeEmpty())

			doc, err := s.Get(ctx, "intakes", id)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(doc.Collection).To(gomega.Equal("intakes"))
			gomega.Expect(doc.Payload).To(gomega.HaveKeyWithValue("householdSize", 3.0))
			gomega.Expect(doc.Payload["applicant"]).To(gomega.HaveKeyWithValue("phone", "555-0100"))
			gomega.Expect(doc.Payload["allergies"]).To(gomega.ConsistOf("dairy", "soy"))
			gomega.Expect(doc.CreatedAt.IsZero()).To(gomega.BeFalse())
		})

		ginkgo.It("scopes ids to their collection", func() {
			id, err := s.Create(ctx, "intakes", map[string]any{"a": "b"})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			_, err = s.Get(ctx, "volunteers", id)
			gomega.Expect(err).To(gomega.MatchError(store.ErrNotFound))
		})

		ginkgo.It("rejects an empty collection", func() {
			_, err := s.Create(ctx, "", map[string]any{})
			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})

	ginkgo.Context("List", func() {
		ginkgo.It("pages documents in insertion order", func() {
			for i := 0; i < 3; i++ {
				_, err := s.Create(ctx, "contacts", map[string]any{"n": float64(i)})
				gomega.Expect(err).NotTo(gomega.HaveOccurred())
			}
			_, err := s.Create(ctx, "other", map[string]any{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			docs, err := s.List(ctx, "contacts", store.ListOptions{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(docs).To(gomega.HaveLen(3))

			page, err := s.List(ctx, "contacts", store.ListOptions{Limit: 2, Offset: 2})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(page).To(gomega.HaveLen(1))
		})
	})

	ginkgo.Context("Delete", func() {
		ginkgo.It("removes a document once", func() {
			id, err := s.Create(ctx, "intakes", map[string]any{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			gomega.Expect(s.Delete(ctx, "intakes", id)).To(gomega.Succeed())
			gomega.Expect(s.Delete(ctx, "intakes", id)).To(gomega.MatchError(sqlstore.ErrNotFound))
		})
	})

	ginkgo.Context("Open", func() {
		ginkgo.It("rejects unknown drivers", func() {
			_, err := sqlstore.Open("mysql", "dsn")
			gomega.Expect(err).To(gomega.MatchError(gomega.ContainSubstring("unsupported driver")))
		})

		ginkgo.It("requires a postgres dsn", func() {
			_, err := sqlstore.Open(sqlstore.DriverPostgres, "")
			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})
})
