package events

import (
	"bidvault/internal/models"
	"bidvault/utils"
	"fmt"
)

// NotificationsFor derives the user notifications caused by an event.
//
//   - bid_placed: the displaced high bidder is told they were outbid, unless they outbid themselves.
//   - auction_closed, sold: the winner gets "won" and the seller gets "ended".
//   - auction_closed, unsold: the seller gets "ended"; a high bidder blocked by the reserve gets "ended" too.
func NotificationsFor(event models.AuctionEvent) []models.Notification {
	note := func(userID string, kind models.NotificationType, message string) models.Notification {
		id := utils.GenerateID()
		if event.ID != "" {
			// redelivered events map to the same rows
			id = utils.DeriveID(event.ID, userID, string(kind))
		}
		return models.Notification{
			ID:        id,
			UserID:    userID,
			Type:      kind,
			Message:   message,
			RelatedID: event.AuctionID,
			CreatedAt: event.OccurredAt,
		}
	}
	title := event.AuctionTitle
	if title == "" {
		title = event.AuctionID
	}

	switch event.Type {
	case models.EventBidPlaced:
		if event.PreviousBidderID == "" || event.PreviousBidderID == event.BidderID {
			return nil
		}
		return []models.Notification{
			note(event.PreviousBidderID, models.NotificationOutbid,
				fmt.Sprintf("You have been outbid on %q. The current price is %s.", title, event.Amount.StringFixed(2))),
		}

	case models.EventAuctionClosed:
		if event.Sold {
			return []models.Notification{
				note(event.BidderID, models.NotificationWon,
					fmt.Sprintf("You won %q for %s.", title, event.Amount.StringFixed(2))),
				note(event.SellerID, models.NotificationEnded,
					fmt.Sprintf("Your auction %q sold for %s.", title, event.Amount.StringFixed(2))),
			}
		}
		out := []models.Notification{
			note(event.SellerID, models.NotificationEnded, fmt.Sprintf("Your auction %q ended without a sale.", title)),
		}
		if event.BidderID != "" {
			out = append(out, note(event.BidderID, models.NotificationEnded,
				fmt.Sprintf("The auction %q ended without a sale: the reserve price was not met.", title)))
		}
		return out
	}
	return nil
}
