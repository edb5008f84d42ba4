package model_test

import (
	"testing"

	model "github.com/okian/backr/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func strPtr(s string) *string { return &s }

func TestEntity(t *testing.T) {
	convey.Convey("Given an Entity", t, func() {
		convey.Convey("When it has no description, website or campaign", func() {
			e := model.Entity{ID: "e1", Type: model.EntityTypeValidator, Name: "Quiet"}

			convey.Convey("Then it has no public profile", func() {
				convey.So(e.HasPublicProfile(), convey.ShouldBeFalse)
				convey.So(e.DescriptionText(), convey.ShouldEqual, "")
			})
		})

		convey.Convey("When any single profile signal is present", func() {
			withDesc := model.Entity{Description: strPtr("")}
			withSite := model.Entity{Website: strPtr("https://example.org")}
			withCampaign := model.Entity{CampaignCount: 1}

			convey.Convey("Then each counts as a public profile", func() {
				convey.So(withDesc.HasPublicProfile(), convey.ShouldBeTrue)
				convey.So(withSite.HasPublicProfile(), convey.ShouldBeTrue)
				convey.So(withCampaign.HasPublicProfile(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When collecting active backer ids", func() {
			e := model.Entity{Backings: []model.Backing{
				{UserID: "u1", Status: model.BackingPledged},
				{UserID: "u2", Status: model.BackingLocked},
				{UserID: "u1", Status: model.BackingLocked},
				{UserID: "u3", Status: model.BackingWithdrawn},
				{UserID: "u4", Status: model.BackingCancelled},
			}}

			convey.Convey("Then inactive backings are skipped and ids are distinct", func() {
				convey.So(e.ActiveBackerIDs(), convey.ShouldResemble, []string{"u1", "u2"})
			})
		})
	})
}

func TestEntityTypeAndStatus(t *testing.T) {
	convey.Convey("Given the closed enums", t, func() {
		convey.So(model.EntityTypeFeaturedApp.Valid(), convey.ShouldBeTrue)
		convey.So(model.EntityTypeValidator.Valid(), convey.ShouldBeTrue)
		convey.So(model.EntityType("SPONSOR").Valid(), convey.ShouldBeFalse)

		convey.So(model.BackingPledged.Active(), convey.ShouldBeTrue)
		convey.So(model.BackingLocked.Active(), convey.ShouldBeTrue)
		convey.So(model.BackingWithdrawn.Active(), convey.ShouldBeFalse)
		convey.So(model.ActiveBackingStatuses(), convey.ShouldHaveLength, 2)
	})
}
