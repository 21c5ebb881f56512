package migrations

import (
	"github.com/pocketbase/pocketbase/core"
)

// collection names mirror the constants in internal/repository
var attendanceCollections = []string{
	"app_users",
	"attendance",
	"worker_status",
	"settings",
	"tasks",
	"notifications",
}

func init() {
	core.AppMigrations.Register(func(app core.App) error {
		users := core.NewBaseCollection("app_users")
		users.Fields.Add(
			&core.TextField{Id: "usr_name", Name: "full_name", Required: true, Max: 255},
			&core.TextField{Id: "usr_email", Name: "email", Required: true, Max: 255},
			&core.TextField{Id: "usr_role", Name: "role", Required: true, Max: 16},
			&core.TextField{Id: "usr_photo", Name: "photo", Max: 1024},
			&core.NumberField{Id: "usr_chat", Name: "telegram_chat_id", OnlyInt: true},
		)
		users.AddIndex("idx_app_users_email", true, "email", "")

		records := core.NewBaseCollection("attendance")
		records.Fields.Add(
			&core.TextField{Id: "att_key", Name: "record_key", Max: 64},
			&core.TextField{Id: "att_user", Name: "user_id", Required: true, Max: 64},
			&core.TextField{Id: "att_type", Name: "type", Required: true, Max: 16},
			&core.TextField{Id: "att_ts", Name: "timestamp", Required: true, Max: 64},
			&core.TextField{Id: "att_date", Name: "date", Required: true, Max: 10},
			&core.NumberField{Id: "att_lat", Name: "gps_lat"},
			&core.NumberField{Id: "att_lng", Name: "gps_lng"},
			&core.TextField{Id: "att_selfie", Name: "selfie", Max: 255},
		)
		records.AddIndex("idx_attendance_user_date", false, "user_id, date", "")

		statuses := core.NewBaseCollection("worker_status")
		statuses.Fields.Add(
			&core.TextField{Id: "st_user", Name: "user_id", Required: true, Max: 64},
			&core.TextField{Id: "st_status", Name: "status", Required: true, Max: 16},
		)
		statuses.AddIndex("idx_worker_status_user", true, "user_id", "")

		settings := core.NewBaseCollection("settings")
		settings.Fields.Add(
			&core.NumberField{Id: "set_lat", Name: "location_lat"},
			&core.NumberField{Id: "set_lng", Name: "location_lng"},
			&core.NumberField{Id: "set_radius", Name: "radius"},
		)

		tasks := core.NewBaseCollection("tasks")
		tasks.Fields.Add(
			&core.TextField{Id: "tsk_title", Name: "title", Required: true, Max: 512},
			&core.TextField{Id: "tsk_user", Name: "assigned_to", Required: true, Max: 64},
			&core.BoolField{Id: "tsk_done", Name: "is_completed"},
			&core.TextField{Id: "tsk_created", Name: "created_at", Max: 64},
			&core.TextField{Id: "tsk_priority", Name: "priority", Max: 16},
			&core.TextField{Id: "tsk_report", Name: "report_response"},
		)

		notifications := core.NewBaseCollection("notifications")
		notifications.Fields.Add(
			&core.TextField{Id: "ntf_user", Name: "user_id", Required: true, Max: 64},
			&core.TextField{Id: "ntf_title", Name: "title", Max: 255},
			&core.TextField{Id: "ntf_message", Name: "message"},
			&core.TextField{Id: "ntf_type", Name: "type", Max: 16},
			&core.TextField{Id: "ntf_ts", Name: "timestamp", Max: 64},
			&core.BoolField{Id: "ntf_read", Name: "is_read"},
		)
		notifications.AddIndex("idx_notifications_user", false, "user_id", "")

		for _, collection := range []*core.Collection{users, records, statuses, settings, tasks, notifications} {
			if err := app.Save(collection); err != nil {
				return err
			}
		}
		return nil
	}, func(app core.App) error {
		for i := len(attendanceCollections) - 1; i >= 0; i-- {
			collection, err := app.FindCollectionByNameOrId(attendanceCollections[i])
			if err != nil {
				continue
			}
			if err := app.Delete(collection); err != nil {
				return err
			}
		}
		return nil
	})
}
