package geofence

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/smukkama/geofence-server/internal/database"
	"github.com/smukkama/geofence-server/internal/protocol"
)

// BuildIntents maps a transition and the geofence's notification settings
// into zero, one or two delivery instructions. A geofence with no channel
// configured (or a device without the matching token) yields an empty
// result; that is a valid outcome, not an error.
func BuildIntents(tr *Transition, device *database.Device) []protocol.NotificationIntent {
	gf := tr.Geofence

	title := "Geofence: " + gf.Name
	message := notificationMessage(tr)
	eventType := protocol.EventGeofenceEnter
	if tr.Kind == TransitionExited {
		eventType = protocol.EventGeofenceExit
	}

	lat := tr.Coordinate.Lat
	lon := tr.Coordinate.Lon
	geofenceID := gf.ID

	base := protocol.NotificationIntent{
		NotificationID: 0, // filled in once the notification row exists
		DeviceID:       device.DeviceID,
		Title:          title,
		Message:        message,
		Priority:       database.PriorityHigh,
		EnableSound:    gf.EnableSound,
		GeofenceID:     &geofenceID,
		EventType:      eventType,
		Latitude:       &lat,
		Longitude:      &lon,
	}

	var intents []protocol.NotificationIntent

	if gf.EnablePush && device.FCMToken != nil && *device.FCMToken != "" {
		intent := base
		intent.IntentID = uuid.NewString()
		intent.Channel = protocol.ChannelPush
		intent.PushToken = *device.FCMToken
		intents = append(intents, intent)
	}

	if gf.EnableTelegram && device.TelegramChatID != nil && *device.TelegramChatID != "" {
		intent := base
		intent.IntentID = uuid.NewString()
		intent.Channel = protocol.ChannelTelegram
		intent.TelegramChatID = *device.TelegramChatID
		intents = append(intents, intent)
	}

	return intents
}

func notificationMessage(tr *Transition) string {
	gf := tr.Geofence
	if gf.NotificationMessage != nil && *gf.NotificationMessage != "" {
		return *gf.NotificationMessage
	}

	verb := "entered"
	if tr.Kind == TransitionExited {
		verb = "exited"
	}
	return fmt.Sprintf("Device %s geofence %s", verb, gf.Name)
}
