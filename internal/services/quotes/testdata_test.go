package quotes

// quotePageHTML mirrors the quote site markup, hash suffixes included.
const quotePageHTML = `<html><body>
<div class="TitleGridAndImage_title-grid-and-image-price__x9a1">
  <div class="TitleGridAndImage_title-grid-and-image-price-text__b2c kotak-heading-2">₹3,912.40</div>
  <div class="kotak-text-regular TitleGridAndImage_title-grid-and-image-price-subtext__77f">+12.35 (0.32%)</div>
</div>
<table>
  <tr class="StockDetail_stock-detail-performance-table-data-row__q1">
    <td class="StockDetail_stock-detail-performance-table-label__q2">Open</td>
    <td class="StockDetail_stock-detail-performance-table-value__q3">3,900.00</td>
  </tr>
  <tr class="StockDetail_stock-detail-performance-table-data-row__q1">
    <td class="StockDetail_stock-detail-performance-table-label__q2">Prev. Close</td>
    <td class="StockDetail_stock-detail-performance-table-value__q3">₹3,900.05</td>
  </tr>
</table>
</body></html>`
