// Package docpaths builds the document store paths shared by every service.
package docpaths

import (
	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
	"github.com/angelmondragon/buildmart-backend/pkg/enums"
)

const (
	usersRoot    = "Users"
	vendorsRoot  = "Vendors"
	adminsRoot   = "Admins"
	productsRoot = "Products"
)

func Cart(customerID string) string {
	return docstore.Join(usersRoot, customerID, "Cart")
}

func CartItem(customerID, itemKey string) string {
	return docstore.Join(Cart(customerID), itemKey)
}

func CustomerOrders(customerID string) string {
	return docstore.Join(usersRoot, customerID, "Orders")
}

func CustomerOrder(customerID, orderID string) string {
	return docstore.Join(CustomerOrders(customerID), orderID)
}

func CustomerOrderField(customerID, orderID, field string) string {
	return docstore.Join(CustomerOrder(customerID, orderID), field)
}

func CustomerProfile(customerID string) string {
	return docstore.Join(usersRoot, customerID, "Profile")
}

func CustomerNotifications(customerID string) string {
	return docstore.Join(usersRoot, customerID, "Notifications")
}

func VendorOrders(vendorID string) string {
	return docstore.Join(vendorsRoot, vendorID, "Orders")
}

func VendorBucket(vendorID string, bucket enums.OrderBucket) string {
	return docstore.Join(VendorOrders(vendorID), string(bucket))
}

func VendorOrder(vendorID string, bucket enums.OrderBucket, orderID string) string {
	return docstore.Join(VendorBucket(vendorID, bucket), orderID)
}

func VendorProfile(vendorID string) string {
	return docstore.Join(vendorsRoot, vendorID, "Profile")
}

func VendorNotifications(vendorID string) string {
	return docstore.Join(vendorsRoot, vendorID, "Notifications")
}

func AdminProfile(username string) string {
	return docstore.Join(adminsRoot, username)
}

func Products() string {
	return productsRoot
}

func Product(productID string) string {
	return docstore.Join(productsRoot, productID)
}

// Users is the root holding every customer subtree.
func Users() string {
	return usersRoot
}

// Vendors is the root holding every vendor subtree.
func Vendors() string {
	return vendorsRoot
}
