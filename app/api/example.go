package api

const exampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<products>
  <item>
    <sku>ABC-123</sku>
    <model>Samsung Galaxy S21</model>
    <price>349990</price>
    <stock>10</stock>
  </item>
  <item>
    <sku>ABC-124</sku>
    <model>Apple iPhone 13</model>
    <price>419990</price>
    <stock>5</stock>
  </item>
  <item>
    <sku>ABC-125</sku>
    <model>Xiaomi Mi 11</model>
    <price>189990</price>
    <stock>15</stock>
  </item>
</products>`
