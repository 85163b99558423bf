package integration

import (
	"fmt"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/civicstack/campaign-server/test-integration/campaign-api/helpers"
)

var _ = Describe("Campaign API", Label("api"), func() {
	var (
		tempDir      string
		serverHelper *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("campaign-api-test-")
		serverHelper = helpers.NewServerTestHelper(ctx, helpers.WriteSQLiteConfig(tempDir, ""))
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	})

	AfterEach(func() {
		Expect(serverHelper.StopServer()).To(Succeed())
		cleanupTempDir(tempDir)
	})

	Context("System endpoints", func() {
		It("reports health and the entity catalog", func() {
			resp := serverHelper.Do(http.MethodGet, "/health", nil)
			Expect(resp.Status).To(Equal(http.StatusOK))
			Expect(resp.Body).To(HaveKeyWithValue("status", "healthy"))

			resp = serverHelper.Do(http.MethodGet, "/api/v1/entities", nil)
			Expect(resp.Status).To(Equal(http.StatusOK))
			catalog := resp.Data()
			Expect(catalog).To(HaveKeyWithValue("state", "completed"))
			Expect(catalog["entities"]).To(HaveLen(17))
		})
	})

	Context("Record lifecycle", func() {
		It("creates, reads, updates and deletes a citizen", func() {
			id := serverHelper.MustCreate("citizens", helpers.CitizenBody("lisa", "North"))

			resp := serverHelper.Do(http.MethodGet, helpers.Path("citizens", id), nil)
			Expect(resp.Status).To(Equal(http.StatusOK))
			Expect(resp.Data()).To(HaveKeyWithValue("registration_status", "unregistered"))

			resp = serverHelper.Do(http.MethodPatch, helpers.Path("citizens", id), map[string]any{"constituency": "South"})
			Expect(resp.Status).To(Equal(http.StatusOK))
			Expect(resp.Data()).To(HaveKeyWithValue("constituency", "South"))
			Expect(resp.Data()).To(HaveKeyWithValue("name", "lisa"))

			resp = serverHelper.Do(http.MethodDelete, helpers.Path("citizens", id), nil)
			Expect(resp.Status).To(Equal(http.StatusNoContent))

			resp = serverHelper.Do(http.MethodGet, helpers.Path("citizens", id), nil)
			Expect(resp.Status).To(Equal(http.StatusNotFound))
		})

		It("rejects invalid and conflicting input", func() {
			serverHelper.MustCreate("citizens", helpers.CitizenBody("bart", "North"))

			resp := serverHelper.Do(http.MethodPost, "/api/v1/citizens", helpers.CitizenBody("bart", "North"))
			Expect(resp.Status).To(Equal(http.StatusConflict))

			resp = serverHelper.Do(http.MethodPost, "/api/v1/citizens", map[string]any{"name": "homer"})
			Expect(resp.Status).To(Equal(http.StatusBadRequest))
			Expect(resp.Error()).To(Equal("validation failed"))

			body := helpers.CitizenBody("maggie", "North")
			body["address_id"] = 4242
			resp = serverHelper.Do(http.MethodPost, "/api/v1/citizens", body)
			Expect(resp.Status).To(Equal(http.StatusUnprocessableEntity))

			resp = serverHelper.Do(http.MethodPost, "/api/v1/volunteers", map[string]any{
				"first_name": "Ned", "last_name": "Flanders", "email": "ned@example.org", "status": "retired",
			})
			Expect(resp.Status).To(Equal(http.StatusBadRequest))
			Expect(resp.Body["details"]).To(HaveKeyWithValue("status", ContainSubstring("must be one of")))
		})

		It("cascades campaign deletion to its teams", func() {
			campaignID := serverHelper.MustCreate("campaigns", helpers.CampaignBody("Fall Drive"))
			teamID := serverHelper.MustCreate("campaign-teams", helpers.TeamBody(campaignID, "North"))

			Expect(serverHelper.Do(http.MethodDelete, helpers.Path("campaigns", campaignID), nil).Status).
				To(Equal(http.StatusNoContent))
			Expect(serverHelper.Do(http.MethodGet, helpers.Path("campaign-teams", teamID), nil).Status).
				To(Equal(http.StatusNotFound))
		})
	})

	Context("Listing", func() {
		BeforeEach(func() {
			for i := range 12 {
				constituency := "North"
				if i%3 == 0 {
					constituency = "South"
				}
				serverHelper.MustCreate("citizens", helpers.CitizenBody(fmt.Sprintf("citizen%02d", i), constituency))
			}
		})

		It("paginates results", func() {
			resp := serverHelper.Do(http.MethodGet, "/api/v1/citizens?page=2&per_page=5", nil)
			Expect(resp.Status).To(Equal(http.StatusOK))
			Expect(resp.Items()).To(HaveLen(5))
			Expect(resp.Meta()).To(HaveKeyWithValue("total_items", BeNumerically("==", 12)))
			Expect(resp.Meta()).To(HaveKeyWithValue("total_pages", BeNumerically("==", 3)))
			Expect(resp.Items()[0]).To(HaveKeyWithValue("name", "citizen05"))
		})

		It("filters by declared parameters", func() {
			resp := serverHelper.Do(http.MethodGet, "/api/v1/citizens?constituency=South", nil)
			Expect(resp.Status).To(Equal(http.StatusOK))
			Expect(resp.Items()).To(HaveLen(4))

			resp = serverHelper.Do(http.MethodGet, "/api/v1/citizens?name=citizen1", nil)
			Expect(resp.Items()).To(HaveLen(2))

			resp = serverHelper.Do(http.MethodGet, "/api/v1/citizens?shoe_size=9", nil)
			Expect(resp.Status).To(Equal(http.StatusBadRequest))
		})
	})

	Context("Aggregates", func() {
		It("lists the teams of a campaign", func() {
			campaignID := serverHelper.MustCreate("campaigns", helpers.CampaignBody("Spring Drive"))
			otherID := serverHelper.MustCreate("campaigns", helpers.CampaignBody("Other Drive"))
			serverHelper.MustCreate("campaign-teams", helpers.TeamBody(campaignID, "North"))
			serverHelper.MustCreate("campaign-teams", helpers.TeamBody(campaignID, "South"))
			serverHelper.MustCreate("campaign-teams", helpers.TeamBody(otherID, "East"))

			resp := serverHelper.Do(http.MethodGet, fmt.Sprintf("/api/v1/campaigns/%d/teams", campaignID), nil)
			Expect(resp.Status).To(Equal(http.StatusOK))
			Expect(resp.Items()).To(HaveLen(2))

			resp = serverHelper.Do(http.MethodGet, "/api/v1/campaigns/999/teams", nil)
			Expect(resp.Status).To(Equal(http.StatusNotFound))
		})

		It("summarizes canvassers contacted today and tracks intention changes", func() {
			citizenA := serverHelper.MustCreate("citizens", helpers.CitizenBody("carl", "East"))
			citizenB := serverHelper.MustCreate("citizens", helpers.CitizenBody("lenny", "East"))

			canvasser := serverHelper.MustCreate("canvassers", map[string]any{
				"citizen_id": citizenA, "current_intention": "undecided",
			})
			serverHelper.MustCreate("canvassers", map[string]any{
				"citizen_id": citizenB, "current_intention": "for",
			})

			resp := serverHelper.Do(http.MethodPatch, helpers.Path("canvassers", canvasser), map[string]any{
				"current_intention": "for",
			})
			Expect(resp.Status).To(Equal(http.StatusOK))
			Expect(resp.Data()).To(HaveKeyWithValue("previous_intention", "undecided"))

			resp = serverHelper.Do(http.MethodPatch, helpers.Path("canvassers", canvasser), map[string]any{
				"last_contact_date": time.Now().UTC().Format(time.RFC3339),
			})
			Expect(resp.Status).To(Equal(http.StatusOK))
			Expect(resp.Data()).To(HaveKeyWithValue("previous_intention", "undecided"))

			resp = serverHelper.Do(http.MethodGet, "/api/v1/canvassers/stats", nil)
			Expect(resp.Status).To(Equal(http.StatusOK))
			stats := resp.Data()
			Expect(stats).To(HaveKeyWithValue("total_canvassers", BeNumerically("==", 2)))
			Expect(stats["intention_breakdown"]).To(HaveKeyWithValue("for", BeNumerically("==", 2)))
			Expect(stats).To(HaveKeyWithValue("recent_contacts", BeNumerically("==", 1)))
		})
	})
})
