package yida

// Field codes of the 进项票库存 (inventory lot) form.
const (
	lotProductCode  = "textField_mhlqrhyy"
	lotProductName  = "textField_mhlqrhyw"
	lotInvoiceNo    = "textField_mhlqrhyx"
	lotInvoiceDate  = "dateField_mhlqrhyr"
	lotOriginalQty  = "numberField_mhlqrhys"
	lotConsumedQty  = "numberField_mhlqrhyt"
	lotRemainingQty = "numberField_mhlqrhyu"
	lotUnitPrice    = "numberField_mhlqrhyz"
	lotStatus       = "radioField_mhlqrhyv"
	lotSpec         = "textField_mhlqrhz0"
	lotCategory     = "textField_mhlqrhz1"
	lotUnit         = "textField_mhlqrhz2"
)

// Field codes of the 成本结转底表 (cost-carry) form. Quantity is a text field.
const (
	costSalesDate    = "dateField_mh8x8uxc"
	costProductName  = "textField_mh8x8uwz"
	costBatch        = "textField_mh8x8ux0"
	costCustomer     = "textField_mh8x8ux1"
	costInvoiceType  = "textField_mh8x8ux8"
	costInvoiceNo    = "textField_mh8x8ux9"
	costQuantity     = "textField_mh8x8uxa"
	costSalesOrderNo = "textField_mh8x8uxb"
	costStatus       = "textField_mh8x8uxk"
	costProductCode  = "textField_mh8x8uxl"
	costPurchaseNo   = "textField_mh8x8uxd"
	costPurchaseDate = "dateField_mh8x8uxe"
	costSupplier     = "textField_mh8x8uxf"
)

// Field codes of the 产品主数据 (product totals) form.
const (
	totalProductCode  = "textField_mi8qtp01"
	totalProductName  = "textField_mi8qtp02"
	totalPurchasedQty = "numberField_mi8qtp03"
	totalSoldQty      = "numberField_mi8qtp04"
)

// Field codes of the 发票统计 (invoice statistics) form.
const (
	statInvoiceNo    = "textField_mi8stat01"
	statInvoiceDate  = "dateField_mi8stat02"
	statDirection    = "radioField_mi8stat03"
	statCounterparty = "textField_mi8stat04"
	statProductCode  = "textField_mi8stat05"
	statProductName  = "textField_mi8stat06"
	statQuantity     = "numberField_mi8stat07"
	statUnitPrice    = "numberField_mi8stat08"
	statAmount       = "numberField_mi8stat09"
)
